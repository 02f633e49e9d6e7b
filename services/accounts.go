// Package services holds the application rules behind each HTTP route.
// Every call takes the caller's identity explicitly.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"neurallog/apperr"
	"neurallog/auth"
	"neurallog/db"
	"neurallog/models"
)

type AccountStore interface {
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	CreateUser(ctx context.Context, username, passwordHash, email string) (models.User, error)
}

// Accounts registers and authenticates users.
type Accounts struct {
	store      AccountStore
	bcryptCost int
}

func NewAccounts(store AccountStore, bcryptCost int) *Accounts {
	return &Accounts{store: store, bcryptCost: bcryptCost}
}

type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// normalizeUsername is applied on every path that takes a username from
// the client, so registration and login agree on the stored form.
func normalizeUsername(name string) string {
	return strings.TrimSpace(name)
}

func identityOf(u models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
}

// Register creates an account. The very first account becomes an admin.
func (a *Accounts) Register(ctx context.Context, in Registration) (auth.Identity, error) {
	in.Username = normalizeUsername(in.Username)
	if in.Username == "" || in.Password == "" {
		return auth.Identity{}, apperr.Validation(MsgUsernamePasswordRequired)
	}

	if _, err := a.store.UserByUsername(ctx, in.Username); err == nil {
		return auth.Identity{}, apperr.Conflict(MsgUsernameAlreadyExists)
	} else if !errors.Is(err, db.ErrNotFound) {
		return auth.Identity{}, err
	}

	hash, err := auth.HashPassword(in.Password, a.bcryptCost)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := a.store.CreateUser(ctx, in.Username, hash, strings.TrimSpace(in.Email))
	if err != nil {
		if errors.Is(err, db.ErrUsernameTaken) {
			return auth.Identity{}, apperr.Conflict(MsgUsernameAlreadyExists)
		}
		return auth.Identity{}, err
	}
	return identityOf(u), nil
}

// Login checks credentials. Unknown users and wrong passwords fail the
// same way.
func (a *Accounts) Login(ctx context.Context, username, password string) (auth.Identity, error) {
	u, err := a.store.UserByUsername(ctx, normalizeUsername(username))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return auth.Identity{}, err
	}

	hash := u.PasswordHash
	if err != nil {
		hash = auth.DummyHash
	}
	if !auth.CheckPasswordHash(password, hash) || err != nil {
		return auth.Identity{}, apperr.Authentication(MsgInvalidCredentials)
	}
	return identityOf(u), nil
}

// Resolve reloads the identity of a session's user so that admin changes
// and deletions take effect on the next request.
func (a *Accounts) Resolve(ctx context.Context, userID int64) (auth.Identity, error) {
	u, err := a.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return auth.Identity{}, apperr.Authentication(MsgAuthenticationRequired)
		}
		return auth.Identity{}, err
	}
	return identityOf(u), nil
}
