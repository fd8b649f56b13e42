// Package guard decides, for every page navigation, whether the requested
// path may render or must redirect.
package guard

import (
	"path"
	"strings"

	"go.uber.org/zap"

	"docuflow/portal/internal/session"
)

type Class int

const (
	Public Class = iota
	Protected
	AuthOnly
)

func (c Class) String() string {
	switch c {
	case Protected:
		return "protected"
	case AuthOnly:
		return "auth-only"
	default:
		return "public"
	}
}

var (
	protectedPrefixes = []string{"/admin", "/department", "/employee"}
	authOnlyPaths     = []string{"/login", "/register", "/forgot-password"}
)

// Classify is a pure function of the path. Protected prefixes match whole
// segments, so /administrator is public.
func Classify(p string) Class {
	p = normalize(p)
	for _, prefix := range protectedPrefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return Protected
		}
	}
	for _, ap := range authOnlyPaths {
		if p == ap {
			return AuthOnly
		}
	}
	return Public
}

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// State is what the guard needs from the session reader.
type State interface {
	SyncCookie(jar session.Jar) bool
	Role() (session.Role, error)
}

type Decision struct {
	Path          string
	Class         Class
	Authenticated bool
	Redirect      string
}

func (d Decision) Allowed() bool { return d.Redirect == "" }

type Guard struct {
	state State
	log   *zap.Logger
}

func New(state State, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{state: state, log: log}
}

// Navigate syncs the cookie once, then evaluates the path against the fresh
// authentication state.
func (g *Guard) Navigate(p string, jar session.Jar) Decision {
	authenticated := g.state.SyncCookie(jar)
	d := Decision{Path: p, Class: Classify(p), Authenticated: authenticated}

	switch d.Class {
	case Protected:
		if !authenticated {
			d.Redirect = session.LoginPath
		}
	case AuthOnly:
		if authenticated {
			d.Redirect = g.landing()
		}
	}
	if d.Redirect != "" {
		g.log.Debug("navigation redirected",
			zap.String("path", p),
			zap.Stringer("class", d.Class),
			zap.String("redirect", d.Redirect))
	}
	return d
}

func (g *Guard) landing() string {
	role, err := g.state.Role()
	if err != nil {
		g.log.Warn("session role unreadable, falling back to home", zap.Error(err))
		return session.HomePath
	}
	return role.Dashboard()
}
