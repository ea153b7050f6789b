// Package server exposes the extraction platform over HTTP: document upload
// and status, requirement review queues, validation actions and the
// compliance matrix. The core pipeline lives in docpipe/extract/ingest;
// this layer is routing, encoding and auth plumbing around it.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendertrace/rfpx/idgen"
	"github.com/tendertrace/rfpx/ingest"
	"github.com/tendertrace/rfpx/kit"
	"github.com/tendertrace/rfpx/shield"
	"github.com/tendertrace/rfpx/store"
)

// Server wires the HTTP surface to the store and the ingest pool.
type Server struct {
	cfg     *Config
	store   *store.Store
	files   *ingest.FileStore
	pool    *ingest.Pool
	logger  *slog.Logger
	limiter *shield.RateLimiter

	newDocID idgen.Generator
	newJobID idgen.Generator
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(cfg *Config, st *store.Store, files *ingest.FileStore, pool *ingest.Pool, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		files:    files,
		pool:     pool,
		logger:   slog.Default(),
		newDocID: idgen.Prefixed("doc_", idgen.Default),
		newJobID: idgen.Prefixed("job_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}
	if len(cfg.RateLimits) > 0 {
		rules := make(map[string]shield.Rule, len(cfg.RateLimits))
		for prefix, perMinute := range cfg.RateLimits {
			rules[prefix] = shield.Rule{MaxRequests: perMinute, Window: time.Minute}
		}
		s.limiter = shield.NewRateLimiter(rules)
	}
	return s
}

// StartGC launches background eviction of expired rate-limit buckets.
// No-op when rate limiting is disabled.
func (s *Server) StartGC(ctx context.Context) {
	if s.limiter != nil {
		s.limiter.StartGC(ctx, 5*time.Minute)
	}
}

// Router builds the chi router with all endpoints mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestContext)
	r.Use(shield.SecurityHeaders())
	// Multipart framing adds overhead beyond the file itself.
	r.Use(shield.MaxBody(s.cfg.MaxFileBytes() + 1<<20))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}
	if s.cfg.Auth.Enabled {
		r.Use(s.basicAuth)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/documents/{id}/status", s.handleDocumentStatus)
		r.Get("/documents/{id}/requirements", s.handleDocumentRequirements)
		r.Get("/documents/{id}/stats", s.handleDocumentStats)
		r.Get("/documents/{id}/matrix", s.handleComplianceMatrix)

		r.Get("/requirements/pending", s.handlePendingRequirements)
		r.Get("/requirements/{id}", s.handleGetRequirement)
		r.Patch("/requirements/{id}", s.handleValidate)

		r.Get("/health", s.handleHealth)
	})
	return r
}

// requestContext enriches the request context with a request ID (reused as
// trace ID so SQL traces correlate with HTTP requests).
func (s *Server) requestContext(next http.Handler) http.Handler {
	gen := idgen.Prefixed("req-", idgen.Default)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID := gen()
		ctx = kit.WithRequestID(ctx, reqID)
		ctx = kit.WithTraceID(ctx, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// basicAuth is the reviewer auth stub: one account, bcrypt-hashed password.
// The authenticated username becomes the actor recorded in validation history.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Auth.Username)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(s.cfg.Auth.PasswordBcrypt), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="rfpx"`)
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(kit.WithActor(r.Context(), user)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
