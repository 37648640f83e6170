// Package middleware holds the http middleware the loader API mounts
package middleware

import (
	"net/http"

	pnet "modloader/internal/platform/net"
)

// AuthPort turns a request into a user id and scope
type AuthPort interface {
	Parse(r *http.Request) (userID, scope string, err error)
}

// Auth stores the parsed user and scope on the request context
// a nil port lets every request through; onErr writes the rejection
func Auth(p AuthPort, onErr func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if p == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, scope, err := p.Parse(r)
			if err != nil {
				onErr(w, r, err)
				return
			}
			ctx := pnet.WithUser(r.Context(), uid)
			ctx = pnet.WithRequest(ctx, pnet.RequestID(ctx), scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
