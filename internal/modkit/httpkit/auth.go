package httpkit

import (
	"net/http"
	"strings"

	perr "modloader/internal/platform/errors"
	pnet "modloader/internal/platform/net"
	phttp "modloader/internal/platform/net/http"
	"modloader/internal/platform/net/middleware"
)

// TokenFunc maps a bearer token to a user id and scope
type TokenFunc func(token string) (userID, scope string, err error)

// Port reads the Authorization header and hands the bearer token to a TokenFunc
type Port struct{ parse TokenFunc }

var _ middleware.AuthPort = (*Port)(nil)

// NewPortFunc builds a Port around fn
func NewPortFunc(fn TokenFunc) *Port { return &Port{parse: fn} }

// Parse implements middleware.AuthPort; every failure is Unauthorized
func (p *Port) Parse(r *http.Request) (string, string, error) {
	scheme, token, _ := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	token = strings.TrimSpace(token)
	if !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", "", perr.Unauthorizedf("missing bearer token")
	}
	if p.parse == nil {
		return "", "", perr.Unauthorizedf("invalid bearer token")
	}
	uid, scope, err := p.parse(token)
	if err != nil {
		return "", "", perr.Unauthorizedf("invalid bearer token")
	}
	return uid, scope, nil
}

// Protected mounts fn's routes behind p; a nil p leaves them open
func Protected(r Router, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(g Router) {
		g.Use(middleware.Auth(p, phttp.WriteError))
		fn(g)
	})
}

// Actor is the authenticated user id, or anon
func Actor(r *http.Request) string {
	if uid := pnet.UserID(r.Context()); uid != "" {
		return uid
	}
	return "anon"
}
