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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sagarc03/docgate"
)

// Gateway forwards requests to object storage. *docgate.Gateway implements it.
type Gateway interface {
	Download(ctx context.Context, key string) (docgate.Object, error)
	List(ctx context.Context, opts docgate.ListOptions) (docgate.Object, error)
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
	// Token is the shared bearer token inbound requests must present.
	Token    string
	CORS     CORSConfig
	Recorder Recorder
	// MetricsHandler, when set, is served unauthenticated at MetricsPath.
	MetricsHandler http.Handler
	MetricsPath    string
	// Middleware wraps every route, after access logging.
	Middleware []func(http.Handler) http.Handler
}

// Handler provides HTTP handlers for the gateway routes.
type Handler struct {
	config  HandlerConfig
	gateway Gateway
}

// NewHandler creates a new Handler with the given configuration and gateway.
func NewHandler(config *HandlerConfig, gateway Gateway) *Handler {
	return &Handler{
		config:  *config,
		gateway: gateway,
	}
}

// Router returns an http.Handler with every route configured.
// GET /download/* and GET /list sit behind the bearer token gate;
// GET /healthz and the metrics path do not. Everything else is a 404.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(AccessLogMiddleware)
	for _, mw := range h.config.Middleware {
		r.Use(mw)
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

	r.NotFound(writeRouteNotFound)
	r.MethodNotAllowed(writeRouteNotFound)

	r.Get("/healthz", h.handleHealth)

	if h.config.MetricsHandler != nil && h.config.MetricsPath != "" {
		r.Method(http.MethodGet, h.config.MetricsPath, h.config.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(ReceivedMiddleware(h.config.Recorder))
		r.Use(AuthMiddleware(h.config.Token, h.config.Recorder))
		r.Get("/download/*", h.handleDownload)
		r.Get("/list", h.handleList)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/download/")

	if !docgate.IsValidKey(key) {
		WriteError(w, http.StatusBadRequest, CodeInvalidKey, "Invalid object key")
		return
	}

	obj, err := h.gateway.Download(r.Context(), key)
	if err != nil {
		record(h.config.Recorder, r, EventBackendFailure)
		HandleError(w, err)
		return
	}
	defer func() { _ = obj.Body.Close() }()

	record(h.config.Recorder, r, EventBackendSuccess)
	h.stream(w, r, obj)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := docgate.ListOptions{
		Prefix: q.Get("prefix"),
		Start:  q.Get("start"),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			WriteError(w, http.StatusBadRequest, CodeInvalidLimit, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}

	obj, err := h.gateway.List(r.Context(), opts)
	if err != nil {
		record(h.config.Recorder, r, EventBackendFailure)
		HandleError(w, err)
		return
	}
	defer func() { _ = obj.Body.Close() }()

	record(h.config.Recorder, r, EventBackendSuccess)
	h.stream(w, r, obj)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, obj docgate.Object) {
	w.Header().Set("Content-Type", obj.ContentType)
	if obj.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("response stream interrupted", "path", r.URL.Path, "err", err)
	}
}
