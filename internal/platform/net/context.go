// Package net holds the request scoped values shared by middleware, handlers and logs
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey uint8

const (
	keyScope ctxKey = iota
	keyUserID
)

// WithRequest stores the request id and auth scope on ctx
// the request id lives under chi's key so chi's RequestID middleware and this package agree
func WithRequest(ctx context.Context, reqID, scope string) context.Context {
	if reqID != "" {
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if scope != "" {
		ctx = context.WithValue(ctx, keyScope, scope)
	}
	return ctx
}

// WithUser stores the authenticated user id on ctx
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyUserID, userID)
}

// RequestID returns the request id or ""
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// Scope returns the auth scope or ""
func Scope(ctx context.Context) string {
	s, _ := ctx.Value(keyScope).(string)
	return s
}

// UserID returns the authenticated user id or ""
func UserID(ctx context.Context) string {
	s, _ := ctx.Value(keyUserID).(string)
	return s
}
