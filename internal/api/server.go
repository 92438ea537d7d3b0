package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"RankRadar/internal/cache"
	"RankRadar/internal/metrics"
	"RankRadar/internal/recorder"
	"RankRadar/internal/watchlist"
)

// Options wires a Server. Cache and Metrics are optional.
type Options struct {
	Query         recorder.Query
	Cache         cache.Cache
	Metrics       *metrics.Registry
	CacheTTL      time.Duration
	Windows       []int
	DefaultWindow int
	Watch         watchlist.Params
	Now           func() time.Time
}

// Server is the read-only JSON API over the score store.
type Server struct {
	router  *mux.Router
	query   recorder.Query
	cache   cache.Cache
	metrics *metrics.Registry
	ttl     time.Duration
	windows map[int]bool
	window  int
	watch   watchlist.Params
	now     func() time.Time
	server  *http.Server
}

// NewServer creates a Server with all routes registered.
func NewServer(opts Options) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		query:   opts.Query,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		ttl:     opts.CacheTTL,
		windows: make(map[int]bool, len(opts.Windows)),
		window:  opts.DefaultWindow,
		watch:   opts.Watch,
		now:     opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = 60 * time.Second
	}
	if s.window <= 0 {
		s.window = 14
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, w := range opts.Windows {
		s.windows[w] = true
	}
	s.windows[s.window] = true
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metricsMiddleware)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.endpoint(s.dashboard)).Methods(http.MethodGet)
	api.HandleFunc("/coins/{id}", s.endpoint(s.coin)).Methods(http.MethodGet)
	api.HandleFunc("/watchlist", s.endpoint(s.watchList)).Methods(http.MethodGet)
	api.HandleFunc("/trophies", s.endpoint(s.trophies)).Methods(http.MethodGet)
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// apiError carries an HTTP status to the error envelope.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(msg string) error { return &apiError{status: http.StatusBadRequest, msg: msg} }

type handlerFunc func(r *http.Request) (any, error)

// endpoint adapts a handler to JSON responses and to the response cache keyed
// by the request URI.
func (s *Server) endpoint(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		useCache := s.cache != nil
		key := cache.ResponseKey(r.URL.RequestURI())

		if useCache {
			body, ok, err := s.cache.Get(r.Context(), key)
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("response cache read failed")
			}
			if s.metrics != nil {
				s.metrics.CacheResult("response", ok)
			}
			if ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}
		}

		payload, err := fn(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body, err := json.Marshal(payload)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		if useCache {
			if err := s.cache.Set(r.Context(), key, body, s.ttl); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("response cache write failed")
			}
			w.Header().Set("X-Cache", "MISS")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		writeJSON(w, ae.status, ErrorResponse{Error: ae.msg})
	case errors.Is(err, recorder.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		id, _ := r.Context().Value(requestIDKey).(string)
		log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(sr.status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
