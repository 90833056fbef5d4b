// Package http serves the web UI: server-rendered views over the per-user
// session stores, with form posts for every mutation.
package http

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"duit/internal/advisor"
	"duit/internal/log"
	"duit/internal/middleware/ratelimit"
	"duit/internal/middleware/security"
	"duit/internal/middleware/trace"
	"duit/internal/session"
	"duit/web"
)

const ownerCookie = "duit_owner"

type Server struct {
	http.Server

	sessions *session.Manager
	advisor  *advisor.Requester
	logger   *log.Logger
	tmpl     *template.Template

	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer builds the full handler chain. advRequester may be nil when the
// advisory feature is disabled; the advice page then renders a notice
// instead. postRateLimit caps POST requests per client IP per minute; zero
// falls back to the package default.
func NewServer(addr string, sessions *session.Manager, advRequester *advisor.Requester, logger *log.Logger, postRateLimit int) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"idr":  advisor.FormatIDR,
		"date": func(t time.Time) string { return t.Format("02 Jan 2006") },
		"dateInput": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"pct": func(p float64) string { return fmt.Sprintf("%.1f", p) },
	}).ParseFS(web.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		sessions: sessions,
		advisor:  advRequester,
		logger:   logger.WithComponent(log.ComponentHTTP),
		tmpl:     tmpl,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: postRateLimit}),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleHealth)

	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(http.FileServer(http.FS(web.StaticFS))))

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.withStore(s.handleDashboard))
	mux.HandleFunc("GET /history", s.withStore(s.handleHistory))
	mux.HandleFunc("GET /accounts", s.withStore(s.handleAccounts))
	mux.HandleFunc("GET /categories", s.withStore(s.handleCategories))
	mux.HandleFunc("GET /budget", s.withStore(s.handleBudget))
	mux.HandleFunc("GET /profile", s.withStore(s.handleProfile))
	mux.HandleFunc("GET /advice", s.withStore(s.handleAdvicePage))
	mux.HandleFunc("POST /advice", s.withStore(s.handleAdvice))

	mux.HandleFunc("POST /transactions", s.withStore(s.handleCreateTransaction))
	mux.HandleFunc("POST /transactions/{id}/update", s.withStore(s.handleUpdateTransaction))
	mux.HandleFunc("POST /transactions/{id}/delete", s.withStore(s.handleDeleteTransaction))

	mux.HandleFunc("POST /accounts", s.withStore(s.handleCreateAccount))
	mux.HandleFunc("POST /accounts/{id}/adjust", s.withStore(s.handleAdjustAccount))
	mux.HandleFunc("POST /accounts/{id}/delete", s.withStore(s.handleDeleteAccount))

	mux.HandleFunc("POST /categories", s.withStore(s.handleCreateCategory))
	mux.HandleFunc("POST /categories/{id}/update", s.withStore(s.handleUpdateCategory))
	mux.HandleFunc("POST /categories/{id}/delete", s.withStore(s.handleDeleteCategory))

	mux.HandleFunc("POST /budget", s.withStore(s.handleSetBudget))
	mux.HandleFunc("POST /profile", s.withStore(s.handleUpdateProfile))

	traceMW := trace.NewMiddleware(s.detector.ExtractClientIP)
	handler := traceMW.Middleware(s.withGuards(mux))

	s.Server = http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s, nil
}

// withGuards applies security headers, suspicious request detection and POST
// rate limiting in front of the mux.
func (s *Server) withGuards(next http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	return headers.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.detector.ExtractClientIP(r)

		if s.detector.DetectSuspiciousRequest(r) {
			fields := log.NewFields().
				WithClientIP(clientIP).
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer"))
			s.logger.Warn("suspicious request blocked", fields.ToSlice()...)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if r.Method == http.MethodPost && !s.limiter.Allow(clientIP) {
			s.logger.Warn("rate limit exceeded", log.FieldClientIP, clientIP)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	}))
}

// withStore resolves the signed-in user's store, redirecting to the login
// page when there is no session.
func (s *Server) withStore(h func(http.ResponseWriter, *http.Request, *session.Store)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(ownerCookie)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		owner := cookie.Value
		store := s.sessions.Store(owner)
		if store == nil {
			// Cookie survived a restart; rebuild the session.
			store, err = s.sessions.SignIn(r.Context(), owner)
			if err != nil {
				s.logger.ErrorContext(r.Context(), "session rebuild failed",
					log.FieldOwner, owner, log.FieldError, err.Error())
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}
		h(w, r, store)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// Shutdown stops the rate limiter cleanup goroutine, closes every user
// session (flushing pending budget writes) and then drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.sessions.Shutdown()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "template render failed",
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err.Error())
	}
}

// sanitizeInput trims whitespace and strips control characters from form
// values before they reach the domain layer.
func sanitizeInput(v string) string {
	v = strings.TrimSpace(v)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, v)
}
