// Package specifier parses, resolves, and classifies module specifiers
package specifier

import (
	"net/url"
	"strings"

	perr "modloader/internal/platform/errors"

	"golang.org/x/text/unicode/norm"
)

// DefaultHidden lists the specifier prefixes that belong to the runtime itself
// and are kept out of cache enumeration
var DefaultHidden = []string{"ext:", "node"}

// Parse validates s as an absolute module specifier and returns its canonical form
func Parse(s string) (string, error) {
	u, err := parseAbs(s)
	if err != nil {
		return "", err
	}
	return canonical(u), nil
}

// Resolve maps specifier against referrer the way a dynamic import does
// absolute specifiers are returned canonicalized, relative ones ("./", "../", "/")
// are joined onto referrer, and bare specifiers are rejected
func Resolve(specifier, referrer string) (string, error) {
	s := norm.NFC.String(strings.TrimSpace(specifier))
	if s == "" {
		return "", perr.InvalidArgf("empty module specifier")
	}

	if isRelative(s) {
		base, err := parseAbs(referrer)
		if err != nil {
			return "", perr.Wrapf(err, perr.ErrorCodeInvalidArgument,
				"cannot resolve %q: invalid referrer %q", specifier, referrer)
		}
		ref, err := url.Parse(s)
		if err != nil {
			return "", perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "invalid module specifier %q", specifier)
		}
		return canonical(base.ResolveReference(ref)), nil
	}

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return "", perr.InvalidArgf(
			"relative import path %q not prefixed with / or ./ or ../", specifier)
	}
	return canonical(u), nil
}

// Hidden reports whether s starts with one of prefixes
func Hidden(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isRelative(s string) bool {
	return strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || strings.HasPrefix(s, "/")
}

func parseAbs(s string) (*url.URL, error) {
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return nil, perr.InvalidArgf("empty module specifier")
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "invalid module specifier %q", s)
	}
	if u.Scheme == "" {
		return nil, perr.InvalidArgf("module specifier %q is not an absolute URL", s)
	}
	return u, nil
}

// canonical renders u as a cache key; input is NFC-normalized before parsing so
// visually equal specifiers share one key
func canonical(u *url.URL) string {
	return u.String()
}
