package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/observability"
)

// Gateway serves objects through the edge cache. *edgeshelf.Gateway
// implements it.
type Gateway interface {
	Serve(ctx context.Context, req edgeshelf.Request) (*edgeshelf.Response, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// AdminSecret enables the /_admin routes when non-empty.
	AdminSecret string
	// MaxUploadSize bounds admin upload bodies in bytes (0 = unbounded).
	MaxUploadSize int64
	// Metrics mounts GET /metrics and records request metrics.
	Metrics bool
	CORS    CORSConfig
}

// Handler provides the HTTP surface: object serving, health, metrics and
// the admin routes.
type Handler struct {
	config  HandlerConfig
	gateway Gateway
	store   edgeshelf.ObjectStore
}

// NewHandler creates a Handler. store backs the admin routes and may be nil
// when no admin secret is configured.
func NewHandler(config *HandlerConfig, gateway Gateway, store edgeshelf.ObjectStore) *Handler {
	return &Handler{
		config:  *config,
		gateway: gateway,
		store:   store,
	}
}

// Router returns an http.Handler with all routes configured. Paths starting
// with /_admin, /_health and /metrics shadow objects of the same name.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(observability.LoggingMiddleware(slog.Default()))
	if h.config.Metrics {
		r.Use(observability.MetricsMiddleware)
	}

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/_health", h.handleHealth)

	if h.config.Metrics {
		r.Method(http.MethodGet, "/metrics", observability.Handler())
	}

	if h.config.AdminSecret != "" && h.store != nil {
		r.Route("/_admin", func(r chi.Router) {
			r.Use(BodyLimitMiddleware(h.config.MaxUploadSize))
			r.Use(AdminAuthMiddleware(h.config.AdminSecret))
			r.Get("/objects", h.handleList)
			r.Post("/objects", h.handleUpload)
			r.Put("/objects/*", h.handlePut)
			r.Delete("/objects/*", h.handleDelete)
		})
	}

	r.Get("/*", h.handleServe)
	r.Head("/*", h.handleServe)
	r.Options("/*", h.handleOptions)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleServe answers GET and HEAD for an object. A matching If-None-Match
// yields 304 with the same headers and no body.
func (h *Handler) handleServe(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")

	resp, err := h.gateway.Serve(r.Context(), edgeshelf.Request{
		Method: r.Method,
		URL:    r.URL,
		Name:   name,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	header := w.Header()
	for k, v := range resp.Header {
		header[k] = v
	}

	if etagMatches(r.Header.Get("If-None-Match"), resp.Header.Get("ETag")) {
		header.Del("Content-Length")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Debug("response copy interrupted", "name", name, "error", err)
	}
}

func (h *Handler) handleOptions(w http.ResponseWriter, _ *http.Request) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", edgeshelf.AllowOriginValue)
	header.Set("Access-Control-Allow-Methods", edgeshelf.AllowMethodsValue)
	header.Set("Access-Control-Allow-Headers", edgeshelf.AllowHeadersValue)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	limitStr := r.URL.Query().Get("limit")
	cursor := r.URL.Query().Get("cursor")

	limit := 100
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = max(1, min(1000, parsed))
		}
	}

	result, err := h.store.List(r.Context(), edgeshelf.ListQuery{
		Prefix: prefix,
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")

	if !edgeshelf.IsValidName(name) {
		WriteError(w, http.StatusBadRequest, "invalid_name", "Invalid object name")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" {
		existing, err := h.store.Get(r.Context(), name)
		if err != nil && !errors.Is(err, edgeshelf.ErrNotFound) {
			HandleError(w, err)
			return
		}
		if err == nil {
			_ = existing.Body.Close()
			if !etagMatches(ifMatch, edgeshelf.QuoteETag(existing.ETag)) {
				WriteError(w, http.StatusPreconditionFailed, "precondition_failed", "ETag mismatch")
				return
			}
		}
	}

	metaData, err := h.store.Put(r.Context(), edgeshelf.PutObject{
		Name:        name,
		ContentType: contentType,
	}, r.Body)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, metaData)
}

// handleUpload stores the multipart "file" field. The object name is the
// "name" form value or, when absent, the uploaded file name.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			HandleError(w, err)
			return
		}
		WriteError(w, http.StatusBadRequest, "missing_file", "Multipart field \"file\" is required")
		return
	}
	defer func() { _ = file.Close() }()

	name := r.FormValue("name")
	if name == "" {
		name = fileHeader.Filename
	}

	if !edgeshelf.IsValidName(name) {
		WriteError(w, http.StatusBadRequest, "invalid_name", "Invalid object name")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	metaData, err := h.store.Put(r.Context(), edgeshelf.PutObject{
		Name:        name,
		ContentType: contentType,
	}, file)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, metaData)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")

	if !edgeshelf.IsValidName(name) {
		WriteError(w, http.StatusBadRequest, "invalid_name", "Invalid object name")
		return
	}

	if err := h.store.Delete(r.Context(), name); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// etagMatches reports whether the If-None-Match or If-Match header value
// list matches etag, using weak comparison.
func etagMatches(list, etag string) bool {
	list = strings.TrimSpace(list)
	if list == "" || etag == "" {
		return false
	}
	if list == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(list, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == want {
			return true
		}
	}
	return false
}
