package auth

import (
	"context"
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

const SessionName = "neurallog-session"

const (
	keyUserID   = "user_id"
	keyUsername = "username"
	keyIsAdmin  = "is_admin"
)

// Identity is the authenticated caller resolved for one request.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Sessions stores identities in signed and encrypted cookies.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions derives the cookie signing and encryption keys from key.
func NewSessions(key string, secure bool) *Sessions {
	// Auth key for signing (HMAC)
	authKey := sha256.Sum256([]byte(key + "auth"))
	// Encryption key for content encryption (AES)
	encKey := sha256.Sum256([]byte(key + "encryption"))

	store := sessions.NewCookieStore(authKey[:], encKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// Get returns the identity stored in the request's session cookie.
func (s *Sessions) Get(r *http.Request) (Identity, bool) {
	session, _ := s.store.Get(r, SessionName)
	id, ok := session.Values[keyUserID].(int64)
	if !ok || id == 0 {
		return Identity{}, false
	}
	username, _ := session.Values[keyUsername].(string)
	isAdmin, _ := session.Values[keyIsAdmin].(bool)
	return Identity{UserID: id, Username: username, IsAdmin: isAdmin}, true
}

// Set starts a session for id.
func (s *Sessions) Set(w http.ResponseWriter, r *http.Request, id Identity) error {
	session, _ := s.store.Get(r, SessionName)
	session.Values[keyUserID] = id.UserID
	session.Values[keyUsername] = id.Username
	session.Values[keyIsAdmin] = id.IsAdmin
	return session.Save(r, w)
}

// Clear expires the session cookie. Calling it without a session is fine.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, SessionName)
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity placed in ctx by the login guard.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
