package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/client"
	"eventmarket/internal/config"
	"eventmarket/internal/domain"
	"eventmarket/internal/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// HTTPServer exposes the dispatcher as a JSON API alongside the gRPC service.
type HTTPServer struct {
	cfg        config.APIConfig
	dispatcher *Dispatcher
	checks     map[string]domain.HealthChecker
	server     *http.Server
	routes     *http.ServeMux
	auth       *HTTPAuth
	log        zerolog.Logger
}

// NewHTTPServer wires the routes. checks are probed by /readyz next to the
// database.
func NewHTTPServer(cfg config.APIConfig, dispatcher *Dispatcher, store domain.LimitStore, checks map[string]domain.HealthChecker, logger *zerolog.Logger) *HTTPServer {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{cfg: cfg, dispatcher: dispatcher, checks: checks, log: log}
	srv.auth = NewHTTPAuth(cfg, store, log)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/query", srv.handleQuery)
	api.HandleFunc("/api/v1/transaction", srv.handleTransaction)
	api.HandleFunc("/api/v1/raw/find", srv.handleRawFind)
	api.HandleFunc("/api/v1/raw/aggregate", srv.handleRawAggregate)
	srv.routes = api

	mux := http.NewServeMux()
	mux.Handle("/api/", srv.auth.Wrap(api))
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/readyz", srv.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler { return s.server.Handler }

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req Request
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := s.dispatcher.Execute(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: data})
}

func (s *HTTPServer) handleTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var batch BatchRequest
	if err := decodeBody(r, &batch); err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := s.dispatcher.ExecuteBatch(r.Context(), batch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: data})
}

// handleRawFind takes the model from ?model= and the raw document as body.
func (s *HTTPServer) handleRawFind(w http.ResponseWriter, r *http.Request) {
	model := strings.TrimSpace(r.URL.Query().Get("model"))
	if model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	s.handleRaw(w, r, Request{Model: model, Action: client.ActionFindRaw})
}

func (s *HTTPServer) handleRawAggregate(w http.ResponseWriter, r *http.Request) {
	s.handleRaw(w, r, Request{Action: client.ActionAggregateRaw})
}

func (s *HTTPServer) handleRaw(w http.ResponseWriter, r *http.Request, req Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	req.Args = json.RawMessage(bytes.TrimSpace(body))
	data, err := s.dispatcher.Execute(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Data: data})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	result := map[string]string{}
	ready := true
	probe := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			ready = false
			result[name] = err.Error()
			return
		}
		result[name] = "ok"
	}

	probe("database", s.dispatcher.client.Ping)
	for name, check := range s.checks {
		if check != nil {
			probe(name, check.Ping)
		}
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, result)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	body := map[string]string{"error": err.Error()}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body["kind"] = string(appErr.Kind)
	}
	writeJSON(w, code, body)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Validation("invalid JSON body: %v", err)
	}
	return nil
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig, store domain.LimitStore, logger zerolog.Logger) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		keys:    newKeyring(&cfg),
		limiter: newRateLimiter(&cfg, store, logger),
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || !a.cfg.HTTP.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if a.cfg.Auth.Enabled {
			p, err := a.keys.authenticate(
				strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)),
				strings.TrimSpace(r.Header.Get(a.keys.extraHeader)),
			)
			if err != nil {
				writeError(w, httpStatus(err), err.Error())
				return
			}
			ctx = withPrincipal(ctx, p)
		}

		if err := a.limiter.allow(ctx, a.clientKey(r)); err != nil {
			writeError(w, httpStatus(err), err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(endpointLabel(r.URL.Path))

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// endpointLabel keeps the metric label set bounded. Service routes collapse
// to their resource so ids never become labels.
func endpointLabel(path string) string {
	switch path {
	case "/api/v1/query", "/api/v1/transaction", "/api/v1/raw/find", "/api/v1/raw/aggregate",
		"/healthz", "/readyz", "/metrics":
		return path
	}
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return "other"
	}
	resource, _, _ := strings.Cut(rest, "/")
	switch resource {
	case "vendors", "reviews", "bookings", "saved-items", "users":
		return "/api/v1/" + resource
	}
	return "other"
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
