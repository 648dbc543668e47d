// ABOUTME: Resolves the user every store operation is scoped to
// ABOUTME: Static, context-carried and fallback providers

// Package identity resolves the current user id for store operations.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrNoIdentity is returned when no user is signed in.
var ErrNoIdentity = errors.New("no signed-in user")

// Provider exposes the current user id.
type Provider interface {
	UserID(ctx context.Context) (string, error)
}

// Static always reports the same user. An empty id reports ErrNoIdentity.
type Static string

// UserID returns the configured id.
func (s Static) UserID(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}

type contextKey string

const userKey contextKey = "kith-user-id"

// WithUser stores a user id on the context.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserFromContext retrieves the id stored by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey).(string)
	return id, ok && id != ""
}

// FromContext reads the user from the request context, as set by Middleware.
type FromContext struct{}

// UserID returns the context user or ErrNoIdentity.
func (FromContext) UserID(ctx context.Context) (string, error) {
	id, ok := UserFromContext(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return id, nil
}

// Fallback prefers the context user and falls back to Default.
type Fallback struct {
	Default Provider
}

// UserID returns the context user when present.
func (f Fallback) UserID(ctx context.Context) (string, error) {
	if id, ok := UserFromContext(ctx); ok {
		return id, nil
	}
	if f.Default == nil {
		return "", ErrNoIdentity
	}
	return f.Default.UserID(ctx)
}
