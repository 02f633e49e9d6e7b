package handlers

import (
	"context"
	"crypto/sha256"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/sirupsen/logrus"

	"neurallog/apperr"
	"neurallog/auth"
	"neurallog/logging"
	"neurallog/services"
)

const (
	RequestIDHeader = "X-Request-ID"
	CSRFHeader      = "X-CSRF-Token"

	contentSecurityPolicy = "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; " +
		"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
		"font-src 'self' https://fonts.gstatic.com; " +
		"img-src 'self' data:"
)

type requestIDKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// RequestLogger tags each request with a fresh id, echoes it in the
// X-Request-ID header and logs one line when the handler returns.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		entry := logging.HTTP().WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"bytes":      rec.bytes,
			"duration":   time.Since(start).String(),
			"remote_ip":  getClientIP(r),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Info("request")
		}
	})
}

func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		if !strings.HasPrefix(r.URL.Path, "/static/") {
			h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
			h.Set("Pragma", "no-cache")
		}
		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware reflects the origin but never allows credentials.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CSRFMiddleware rejects unsafe requests without a valid token. The token
// for the next request is sent in the X-CSRF-Token response header.
func CSRFMiddleware(sessionKey string, secure bool) func(http.Handler) http.Handler {
	key := sha256.Sum256([]byte(sessionKey + "csrf"))
	protect := csrf.Protect(
		key[:],
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	)

	return func(next http.Handler) http.Handler {
		h := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(CSRFHeader, csrf.Token(r))
			next.ServeHTTP(w, r)
		}))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			h.ServeHTTP(w, r)
		})
	}
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	logging.HTTP().WithFields(logrus.Fields{
		"request_id": requestID(r),
		"path":       r.URL.Path,
		"reason":     csrf.FailureReason(r),
	}).Warn("csrf check failed")
	writeMessage(w, r, http.StatusForbidden, "CSRFFailed")
}

type guardClass int

const (
	pageGuard guardClass = iota
	apiGuard
)

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// RequireLogin resolves the session's user against the store on every
// request. Pages redirect to /login; API routes answer 401.
func (s *Server) RequireLogin(class guardClass, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(r)
		var id auth.Identity
		if ok {
			var err error
			id, err = s.accounts.Resolve(r.Context(), sess.UserID)
			if err != nil {
				if apperr.KindOf(err) != apperr.KindAuthentication {
					writeError(w, r, err)
					return
				}
				// The account is gone.
				_ = s.sessions.Clear(w, r)
				ok = false
			}
		}

		if !ok {
			if class == pageGuard {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			writeError(w, r, apperr.Authentication(services.MsgAuthenticationRequired))
			return
		}

		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	}
}

// RequireAdmin wraps RequireLogin and answers 403 for non-admins.
func (s *Server) RequireAdmin(class guardClass, next http.HandlerFunc) http.HandlerFunc {
	return s.RequireLogin(class, func(w http.ResponseWriter, r *http.Request) {
		if !identity(r).IsAdmin {
			writeError(w, r, apperr.Forbidden(MsgAdminAccessRequired))
			return
		}
		next(w, r)
	})
}
