// Package web serves a JSON/HTTP API over the tables client so workflow
// hosts and scripts can drive a remote Tables server through one endpoint.
package web

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/client"
	"github.com/JonMunkholm/tablelink/internal/config"
	"github.com/JonMunkholm/tablelink/internal/importer"
	mw "github.com/JonMunkholm/tablelink/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Deps are the collaborators the handlers use.
type Deps struct {
	Client   *client.Client
	Recorder *audit.Recorder   // optional; nil records nothing
	Imports  *importer.Limiter // optional; built from config when nil
}

// Server is the host HTTP server.
type Server struct {
	client   *client.Client
	recorder *audit.Recorder
	imports  *importer.Limiter
	limiter  *ipLimiter
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires routes and middleware.
func NewServer(deps Deps, cfg *config.Config) *Server {
	imports := deps.Imports
	if imports == nil {
		imports = importer.NewLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	}

	s := &Server{
		client:   deps.Client,
		recorder: deps.Recorder,
		imports:  imports,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(requestMetadata)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Server.RateLimit > 0 {
		s.limiter = newIPLimiter(s.cfg.Server.RateLimit)
		s.router.Use(s.limiter.middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Local CSV imports run under their own timeout.
		r.Post("/tables/{table}/import/csv", s.handleImportCSV)
		r.Post("/views/{view}/import/csv", s.handleImportCSV)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/status", s.handleStatus)

			r.Get("/tables", s.handleListTables)
			r.Post("/tables", s.handleCreateTable)
			r.Get("/tables/{table}", s.handleGetTable)
			r.Put("/tables/{table}", s.handleUpdateTable)
			r.Delete("/tables/{table}", s.handleDeleteTable)

			r.Get("/tables/{table}/views", s.handleListViews)
			r.Post("/tables/{table}/views", s.handleCreateView)
			r.Get("/views/{view}", s.handleGetView)
			r.Put("/views/{view}", s.handleUpdateView)
			r.Delete("/views/{view}", s.handleDeleteView)

			r.Get("/tables/{table}/columns", s.handleListColumns)
			r.Post("/tables/{table}/columns", s.handleCreateColumn)
			r.Get("/views/{view}/columns", s.handleListColumns)
			r.Get("/columns/{column}", s.handleGetColumn)
			r.Delete("/columns/{column}", s.handleDeleteColumn)

			r.Get("/tables/{table}/rows", s.handleListRows)
			r.Get("/views/{view}/rows", s.handleListRows)
			r.Get("/tables/{table}/rows/preview", s.handlePreviewRows)
			r.Get("/views/{view}/rows/preview", s.handlePreviewRows)
			r.Post("/tables/{table}/rows", s.handleCreateRow)
			r.Post("/views/{view}/rows", s.handleCreateRow)
			r.Post("/rows", s.handleCreateRow)
			r.Post("/rows/batch", s.handleBatchCreate)
			r.Get("/rows/{row}", s.handleGetRow)
			r.Put("/rows/{row}", s.handleUpdateRow)
			r.Delete("/rows/{row}", s.handleDeleteRow)

			r.Post("/tables/{table}/import", s.handleImportRemote)
			r.Post("/views/{view}/import", s.handleImportRemote)

			r.Get("/tables/{table}/shares", s.handleListShares)
			r.Post("/tables/{table}/shares", s.handleCreateShare)
			r.Put("/shares/{share}", s.handleUpdateShare)
			r.Delete("/shares/{share}", s.handleDeleteShare)

			r.Get("/audit-log", s.handleAuditLog)
			r.Get("/audit-log/{id}", s.handleAuditLogEntry)
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running imports and
// in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	if err := s.imports.WaitForDrain(ctx); err != nil {
		return err
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Imports exposes the import limiter for shutdown reporting.
func (s *Server) Imports() *importer.Limiter {
	return s.imports
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"imports": s.imports.Status(),
		"audit":   s.recorder.Store() != nil,
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// ipLimiter keeps one token bucket per client address. Idle visitors are
// dropped by a sweeper that runs until stop.
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int

	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(perMinute int) *ipLimiter {
	l := &ipLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go l.cleanup(time.Minute)
	return l
}

func (l *ipLimiter) cleanup(every time.Duration) {
	defer close(l.exited)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep(3 * time.Minute)
		}
	}
}

// sweep forgets visitors idle for longer than idle.
func (l *ipLimiter) sweep(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if time.Since(v.lastSeen) > idle {
			delete(l.visitors, ip)
		}
	}
}

// stop ends the sweeper. Safe to call more than once and on nil.
func (l *ipLimiter) stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !l.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:     "rate limit exceeded",
				Message:   "Too many requests, please wait before trying again",
				Kind:      "rate_limit",
				Retryable: true,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
