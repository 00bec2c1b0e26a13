package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/searchforge/creators_proxy/internal/contract"
	"github.com/searchforge/creators_proxy/internal/controller"
	"github.com/searchforge/creators_proxy/internal/health"
	"github.com/searchforge/creators_proxy/obs"
	"github.com/searchforge/creators_proxy/sources"
)

const cacheHeader = "X-Cache"

// Options tune the HTTP surface.
type Options struct {
	// StrictErrorStatus answers upstream failures with 502 instead of 200.
	StrictErrorStatus bool
	Logger            *zap.Logger
}

// Router wires the HTTP endpoints for the creators proxy.
type Router struct {
	controller   *controller.Controller
	strictStatus bool
	logger       *zap.Logger
}

// NewRouter constructs the HTTP router.
func NewRouter(ctrl *controller.Controller, opts Options) (*chi.Mux, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("controller is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		controller:   ctrl,
		strictStatus: opts.StrictErrorStatus,
		logger:       logger,
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{contract.TraceIDHeader, cacheHeader},
	}))
	mux.Use(r.observe)

	mux.Get("/", health.Status)
	mux.Get("/readyz", health.Readyz(ctrl))
	mux.Get("/creators", r.handleCreators)
	mux.Get("/refresh", r.handleRefresh)
	mux.Handle("/metrics", promhttp.Handler())

	return mux, nil
}

// observe assigns a trace id and records access logs and request metrics.
func (r *Router) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		traceID := req.Header.Get(contract.TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set(contract.TraceIDHeader, traceID)
		req = req.WithContext(contract.WithTraceID(req.Context(), traceID))

		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := req.URL.Path
		if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		took := time.Since(start)

		obs.ObserveProxyRequest(route, status, took, traceID)
		r.logger.Info("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", status),
			zap.Duration("took", took),
			zap.String("trace_id", traceID),
		)
	})
}

func (r *Router) handleCreators(w http.ResponseWriter, req *http.Request) {
	params, err := ParseParams(req.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, contract.ErrorResponse{Error: err.Error()})
		return
	}

	env, hit, err := r.controller.Creators(req.Context(), params)
	if err != nil {
		r.writeUpstreamError(w, err)
		return
	}

	if hit {
		w.Header().Set(cacheHeader, "HIT")
	} else {
		w.Header().Set(cacheHeader, "MISS")
	}
	writeJSON(w, http.StatusOK, env)
}

func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) {
	n, err := r.controller.Refresh(req.Context())
	if err != nil {
		r.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contract.StatusResponse{
		Status:  "refreshed",
		Records: &n,
	})
}

// writeUpstreamError reports a failed fetch. Clients of the original service
// expect HTTP 200 with an error body, so 502 is opt-in.
func (r *Router) writeUpstreamError(w http.ResponseWriter, err error) {
	payload := contract.ErrorResponse{Error: err.Error()}
	status := http.StatusOK

	var upErr *sources.UpstreamError
	if errors.As(err, &upErr) {
		payload.StatusCode = upErr.StatusCode
		if r.strictStatus {
			status = http.StatusBadGateway
		}
	} else {
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}
