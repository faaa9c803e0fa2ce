// cmd/server/main.go
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/valpere/FeedScrapexter/internal/collector"
	"github.com/valpere/FeedScrapexter/internal/config"
	"github.com/valpere/FeedScrapexter/internal/utils"
	"github.com/valpere/FeedScrapexter/pkg/api"
)

var version = "dev"

// maxRequestBody caps uploaded page HTML.
const maxRequestBody = 32 << 20

type server struct {
	pipeline *api.Pipeline
	logger   utils.Logger
	apiKey   string
	limiter  *rate.Limiter
}

func main() {
	configFile := flag.String("config", "", "configuration file")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
	}
	logger := utils.NewLoggerWithOptions(utils.LoggerOptions{
		Level:  utils.ParseLogLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	}).WithField("component", "server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := api.New(ctx, cfg, api.Options{Logger: logger, Version: version})
	if err != nil {
		logger.Errorf("failed to build pipeline: %v", err)
		os.Exit(1)
	}
	defer p.Close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      newServer(p, logger).routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Infof("listening on %s", cfg.Server.Address)
	if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		logger.Errorf("server failed: %v", err)
		os.Exit(1)
	}
}

func newServer(p *api.Pipeline, logger utils.Logger) *server {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &server{
		pipeline: p,
		logger:   logger,
		apiKey:   p.Config().Server.APIKey,
		limiter:  rate.NewLimiter(rate.Limit(10), 20),
	}
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	cfg := s.pipeline.Config()

	r.HandleFunc("/health", s.pipeline.Health().Handler()).Methods(http.MethodGet)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, s.pipeline.Metrics().Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.rateLimitMiddleware, s.authMiddleware)
	v1.HandleFunc("/extract", s.handleExtract).Methods(http.MethodPost)
	v1.HandleFunc("/collect", s.handleCollect).Methods(http.MethodPost)
	v1.HandleFunc("/patterns", s.handlePatterns).Methods(http.MethodGet)
	v1.HandleFunc("/cache", s.handleResetCache).Methods(http.MethodDelete)
	v1.HandleFunc("/flush", s.handleFlush).Methods(http.MethodPost)
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	return otelhttp.NewHandler(s.logMiddleware(r), "feedscrapexter")
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if strings.TrimPrefix(authHeader, "Bearer ") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Debug("request served")
	})
}

type extractRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

type collectRequest struct {
	URL string `json:"url"`
}

type batchResponse struct {
	Batch         *api.Batch `json:"batch"`
	DeliveryError string     `json:"delivery_error,omitempty"`
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" || req.HTML == "" {
		writeError(w, http.StatusBadRequest, "url and html are required")
		return
	}
	batch, err := s.pipeline.Extract(r.Context(), req.URL, strings.NewReader(req.HTML))
	s.writeBatch(w, batch, err)
}

func (s *server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	batch, err := s.pipeline.Collect(r.Context(), req.URL)
	s.writeBatch(w, batch, err)
}

// writeBatch reports a finished batch with 200 even when delivery failed; the
// batch may have been retained for redelivery.
func (s *server) writeBatch(w http.ResponseWriter, batch *api.Batch, err error) {
	switch {
	case stderrors.Is(err, collector.ErrPassInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case batch == nil && err != nil:
		s.logger.Warnf("collection failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		resp := batchResponse{Batch: batch}
		if err != nil {
			resp.DeliveryError = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	libVersion, entries := s.pipeline.Patterns()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": libVersion,
		"entries": entries,
	})
}

func (s *server) handleResetCache(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.ResetCache(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleFlush(w http.ResponseWriter, r *http.Request) {
	delivered, err := s.pipeline.Flush(r.Context())
	resp := map[string]interface{}{
		"delivered": delivered,
		"pending":   s.pipeline.Status(r.Context()).Pending,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Status(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
