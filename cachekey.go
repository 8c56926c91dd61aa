package edgeshelf

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// CacheKey identifies a cached response. Two requests share an entry only
// when Method and URL are byte-identical.
type CacheKey struct {
	Method string
	URL    string
}

// BuildCacheKey derives the cache key for a request. The key uses the path and
// the query string as received, so parameter order matters unless canonical
// is set, in which case parameters are sorted by name (values keep their
// relative order). HEAD requests share the GET entry.
func BuildCacheKey(method string, u *url.URL, canonical bool) CacheKey {
	if method == http.MethodHead {
		method = http.MethodGet
	}

	query := u.RawQuery
	if canonical && query != "" {
		query = canonicalQuery(query)
	}

	target := u.EscapedPath()
	if query != "" {
		target += "?" + query
	}

	return CacheKey{Method: method, URL: target}
}

func (k CacheKey) String() string {
	return k.Method + " " + k.URL
}

// Sum returns a fixed-width digest of the key.
func (k CacheKey) Sum() [32]byte {
	return blake3.Sum256([]byte(k.String()))
}

// canonicalQuery sorts the raw query by parameter name without decoding and
// re-encoding values, so semantically equal spellings of a value still differ.
func canonicalQuery(raw string) string {
	parts := strings.Split(raw, "&")
	sort.SliceStable(parts, func(i, j int) bool {
		return queryName(parts[i]) < queryName(parts[j])
	})
	return strings.Join(parts, "&")
}

func queryName(part string) string {
	name, _, _ := strings.Cut(part, "=")
	return name
}
