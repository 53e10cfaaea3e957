package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trendtube/ingest/internal/config"
	"github.com/trendtube/ingest/internal/metrics"
	"github.com/trendtube/ingest/internal/video"
)

// Responses for the submission endpoint. The error message is deliberately
// uniform: a submitter learns nothing about broker or probe internals.
const (
	msgNew     = "New video submitted successfully."
	msgExists  = "Video already exists. Metadata will be refreshed."
	msgInvalid = "Invalid YouTube URL"

	statusNew    = "new"
	statusExists = "exists"
	statusError  = "error"
)

const trendingLimit = 10

// Server wires HTTP handlers to the publisher, prober, and store.
type Server struct {
	router    chi.Router
	publisher video.Publisher
	prober    video.Prober
	store     video.Store
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	publisher video.Publisher,
	prober video.Prober,
	store video.Store,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	metrics.Init()
	s := &Server{
		publisher: publisher,
		prober:    prober,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/api/upload/submit", s.submit)

	r.Route("/videos", func(r chi.Router) {
		r.Get("/trending", s.trending)
		r.Get("/search", s.search)
		r.Route("/{videoID}", func(r chi.Router) {
			r.Get("/", s.getVideo)
			r.Get("/exists", s.videoExists)
			r.Get("/title", s.videoTitle)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ExistsByID(r.Context(), "readyzprobe"); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitRequest struct {
	URL string `json:"url"`
}

type submitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// submit validates the URL, probes for an existing record, and publishes
// the identifier. The probe is best effort and never blocks publication;
// a publish failure is reported with the same uniform 400 as a bad URL.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.rejectSubmission(w, fmt.Errorf("decode request: %w", err))
		return
	}
	id, err := video.ExtractID(req.URL)
	if err != nil {
		s.rejectSubmission(w, err)
		return
	}

	exists, err := s.prober.Exists(r.Context(), id)
	if err != nil {
		// Treated as "not found": the probe only chooses the message.
		s.logger.Warn("existence probe failed",
			zap.String("video_id", string(id)),
			zap.Error(err),
		)
		exists = false
	}

	if err := s.publisher.Publish(r.Context(), id); err != nil {
		s.logger.Error("publish failed",
			zap.String("video_id", string(id)),
			zap.Error(err),
		)
		s.rejectSubmission(w, err)
		return
	}

	status, message := statusNew, msgNew
	if exists {
		status, message = statusExists, msgExists
	}
	metrics.ObserveSubmission(status)
	s.logger.Info("submission accepted",
		zap.String("video_id", string(id)),
		zap.String("status", status),
	)
	writeJSON(w, http.StatusOK, submitResponse{Status: status, Message: message})
}

func (s *Server) rejectSubmission(w http.ResponseWriter, err error) {
	if !errors.Is(err, video.ErrInvalidURL) {
		s.logger.Debug("submission rejected", zap.Error(err))
	}
	metrics.ObserveSubmission(statusError)
	writeJSON(w, http.StatusBadRequest, submitResponse{Status: statusError, Message: msgInvalid})
}

// videoExists reports a bare JSON boolean, matching what the HTTP prober
// of a peer deployment expects to decode.
func (s *Server) videoExists(w http.ResponseWriter, r *http.Request) {
	id := video.ID(chi.URLParam(r, "videoID"))
	exists, err := s.store.ExistsByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, exists)
}

func (s *Server) videoTitle(w http.ResponseWriter, r *http.Request) {
	id := video.ID(chi.URLParam(r, "videoID"))
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"title": "Unknown Video"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": rec.Title})
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	id := video.ID(chi.URLParam(r, "videoID"))
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, video.ErrNotFound) {
			writeError(w, http.StatusNotFound, "video not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "store lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) trending(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.Trending(r.Context(), trendingLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store lookup failed")
		return
	}
	if recs == nil {
		recs = []video.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter required")
		return
	}
	recs, err := s.store.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store lookup failed")
		return
	}
	if recs == nil {
		recs = []video.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			metrics.ObserveHTTPRequest(r.Method, route, ww.status, duration)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
