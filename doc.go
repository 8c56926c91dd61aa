// Package edgeshelf serves objects (mostly images) from an object store over
// HTTP with an edge response cache in front of the store.
//
// A request for an object flows through four pieces:
//
//   - NormalizeTransform turns query parameters into a TransformDescriptor
//   - BuildCacheKey derives the CacheKey for the request
//   - Gateway consults the EdgeCache and, on a miss, the Fetcher
//   - Assemble builds headers for the fetched ObjectRecord
//
// The transformation descriptor is advisory: it is forwarded in the
// X-Image-Transformations header for a downstream image processor and the
// body bytes are never altered.
//
// # Object stores
//
// ObjectStore is the origin. LocalStore combines a MetaDataRepo (sqlite or
// postgres, see the database package) with a FileStorage (see the filesystem
// package). The s3 package provides a store for S3-compatible buckets.
//
// # Example Usage
//
//	fetcher := edgeshelf.NewFetcher(store)
//	gw := edgeshelf.NewGateway(fetcher, edgecache.NewMemory(edgecache.MemoryConfig{}), edgeshelf.GatewayConfig{})
//	defer gw.Close()
//
//	resp, err := gw.Serve(ctx, edgeshelf.Request{Method: "GET", URL: u, Name: "cat.png"})
//
// See the http package for the REST surface.
package edgeshelf
