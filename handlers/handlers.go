// Package handlers exposes the services over HTTP: routing, route guards,
// the JSON codec and the middleware chain.
package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dchest/captcha"

	"neurallog/apperr"
	"neurallog/auth"
	"neurallog/config"
	"neurallog/db"
	"neurallog/services"
)

type Server struct {
	cfg        config.Config
	sessions   *auth.Sessions
	accounts   *services.Accounts
	activities *services.Activities
	reports    *services.Reports
	exporter   *services.Exporter
	admin      *services.Admin

	loginLimiter  *rateLimiter
	signupLimiter *rateLimiter
}

func NewServer(store *db.Store, cfg config.Config) *Server {
	window := cfg.RateLimit.WindowDuration()
	return &Server{
		cfg:           cfg,
		sessions:      auth.NewSessions(cfg.SessionKey, cfg.SecureCookies),
		accounts:      services.NewAccounts(store, cfg.BcryptCost),
		activities:    services.NewActivities(store),
		reports:       services.NewReports(store),
		exporter:      services.NewExporter(store, cfg.ExportDir),
		admin:         services.NewAdmin(store),
		loginLimiter:  newRateLimiter(cfg.RateLimit.MaxAttempts, window),
		signupLimiter: newRateLimiter(cfg.RateLimit.MaxAttempts, window),
	}
}

func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	// Pages
	mux.HandleFunc("GET /login", s.page("login.html"))
	mux.HandleFunc("GET /register", s.page("login.html"))
	mux.HandleFunc("GET /{$}", s.RequireLogin(pageGuard, s.page("index.html")))
	mux.HandleFunc("GET /admin", s.RequireAdmin(pageGuard, s.page("admin.html")))

	// Session
	mux.HandleFunc("POST /register", s.RegisterHandler)
	mux.HandleFunc("POST /login", s.LoginHandler)
	mux.HandleFunc("GET /logout", s.LogoutHandler)

	// User API
	mux.HandleFunc("GET /api/current-user", s.RequireLogin(apiGuard, s.CurrentUserHandler))
	mux.HandleFunc("GET /api/activities", s.RequireLogin(apiGuard, s.ListActivitiesHandler))
	mux.HandleFunc("POST /api/activities", s.RequireLogin(apiGuard, s.CreateActivityHandler))
	mux.HandleFunc("DELETE /api/activities/{id}", s.RequireLogin(apiGuard, s.DeleteActivityHandler))
	mux.HandleFunc("GET /api/stats", s.RequireLogin(apiGuard, s.StatsHandler))
	mux.HandleFunc("GET /api/milestones", s.RequireLogin(apiGuard, s.MilestoneHistoryHandler))
	mux.HandleFunc("GET /api/milestones/{day}", s.RequireLogin(apiGuard, s.MilestoneHandler))
	mux.HandleFunc("GET /api/export/excel", s.RequireLogin(apiGuard, s.ExportHandler))

	// Admin API
	mux.HandleFunc("GET /api/admin/users", s.RequireAdmin(apiGuard, s.AdminListUsersHandler))
	mux.HandleFunc("DELETE /api/admin/users/{id}", s.RequireAdmin(apiGuard, s.AdminDeleteUserHandler))
	mux.HandleFunc("POST /api/admin/users/{id}/toggle-admin", s.RequireAdmin(apiGuard, s.AdminToggleAdminHandler))
	mux.HandleFunc("GET /api/admin/users/{id}/activities", s.RequireAdmin(apiGuard, s.AdminUserActivitiesHandler))
	mux.HandleFunc("GET /api/admin/stats", s.RequireAdmin(apiGuard, s.AdminStatsHandler))

	// Helpers
	mux.HandleFunc("GET /api/csrf-token", s.CSRFTokenHandler)
	mux.HandleFunc("GET /api/captcha", s.NewCaptchaHandler)
	mux.Handle("GET /captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))

	mux.HandleFunc("/", unmatched(mux))
}

var routeMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// unmatched answers requests no route claims: 405 with an Allow header when
// the path exists under another method, 404 otherwise.
func unmatched(mux *http.ServeMux) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var allowed []string
		for _, method := range routeMethods {
			alt := r.Clone(r.Context())
			alt.Method = method
			if _, pattern := mux.Handler(alt); pattern != "" && pattern != "/" {
				allowed = append(allowed, method)
			}
		}
		if len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			writeMessage(w, r, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
			return
		}
		writeMessage(w, r, http.StatusNotFound, MsgNotFound)
	}
}

// Handler returns the routes wrapped in the middleware chain. CSRF
// protection is applied only when enabled in the config.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterHandlers(mux)

	var h http.Handler = mux
	if s.cfg.CSRFEnabled {
		h = CSRFMiddleware(s.cfg.SessionKey, s.cfg.SecureCookies)(h)
	}
	h = SecurityHeadersMiddleware(h)
	h = RequestLogger(h)
	return CORSMiddleware(h)
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, name))
	}
}

type sessionResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	ip := getClientIP(r)
	if !s.signupLimiter.Allow(ip) {
		writeMessage(w, r, http.StatusTooManyRequests, MsgTooManyAttempts)
		return
	}

	var input struct {
		services.Registration
		CaptchaID       string `json:"captcha_id"`
		CaptchaSolution string `json:"captcha_solution"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	if s.cfg.RegistrationCaptcha && !captcha.VerifyString(input.CaptchaID, input.CaptchaSolution) {
		writeError(w, r, apperr.Validation(MsgInvalidCaptcha))
		return
	}

	id, err := s.accounts.Register(r.Context(), input.Registration)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Record signup attempt to limit rate of creation per IP
	s.signupLimiter.RecordFailure(ip)

	if err := s.sessions.Set(w, r, id); err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusCreated, sessionResponse{Success: true, Username: id.Username, IsAdmin: id.IsAdmin})
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ip := getClientIP(r)
	if !s.loginLimiter.Allow(ip) {
		writeMessage(w, r, http.StatusTooManyRequests, MsgTooManyAttempts)
		return
	}

	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.accounts.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuthentication {
			s.loginLimiter.RecordFailure(ip)
		}
		writeError(w, r, err)
		return
	}
	s.loginLimiter.Reset(ip)

	if err := s.sessions.Set(w, r, id); err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, sessionResponse{Success: true, Username: id.Username, IsAdmin: id.IsAdmin})
}

func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Clear(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
