package edgeshelf

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Response header names and values set on every served object.
const (
	HeaderTransformations = "X-Image-Transformations"
	HeaderFileName        = "X-File-Name"
	HeaderFileSize        = "X-File-Size"

	CacheControlValue = "public, max-age=31536000"
	AllowOriginValue  = "*"
	AllowMethodsValue = "GET, HEAD, OPTIONS"
	AllowHeadersValue = "Content-Type"
)

// Assemble builds the response headers for rec. Store metadata is copied
// first so that the policy headers always win. The transformation header is
// only attached to image content with a non-empty descriptor. The returned
// body is rec.Body, unmodified.
func Assemble(rec ObjectRecord, d TransformDescriptor, name string) (http.Header, io.ReadCloser) {
	h := make(http.Header, len(rec.Metadata)+12)
	for k, v := range rec.Metadata {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}

	if rec.ContentType != "" {
		h.Set("Content-Type", rec.ContentType)
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/octet-stream")
	}
	if !rec.LastModified.IsZero() && h.Get("Last-Modified") == "" {
		h.Set("Last-Modified", rec.LastModified.UTC().Format(http.TimeFormat))
	}

	h.Set("ETag", QuoteETag(rec.ETag))
	h.Set("Cache-Control", CacheControlValue)

	if IsImage(h.Get("Content-Type")) && !d.Empty() {
		h.Set(HeaderTransformations, d.String())
	}

	h.Set("Access-Control-Allow-Origin", AllowOriginValue)
	h.Set("Access-Control-Allow-Methods", AllowMethodsValue)
	h.Set("Access-Control-Allow-Headers", AllowHeadersValue)

	h.Set(HeaderFileName, name)
	if rec.Size >= 0 {
		size := strconv.FormatInt(rec.Size, 10)
		h.Set(HeaderFileSize, size)
		h.Set("Content-Length", size)
	} else {
		// unknown length: the body is streamed chunked
		h.Set(HeaderFileSize, "0")
	}

	return h, rec.Body
}

// IsImage reports whether contentType is an image media type.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// QuoteETag returns etag as a quoted entity tag. Already quoted or weak
// tags are returned as is.
func QuoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, `W/"`) {
		return etag
	}
	return `"` + etag + `"`
}
