// Package edgecache provides edgeshelf.EdgeCache backends.
//
// Memory keeps snapshots in a bounded LRU with a TTL. Disk persists them in
// a single bbolt file through storm, encoded as CBOR, so that a restart does
// not start from a cold cache. Nop never stores anything.
package edgecache
