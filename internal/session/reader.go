// Package session owns a browser client's stored session record and the
// cookies that mirror it. Only Login, ClearSession and SyncCookie write; every
// other caller goes through the read accessors.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrNoSession        = errors.New("no session")
	ErrMalformedSession = errors.New("malformed session record")
)

// KV is one client's key-value namespace.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
	Clear() error
}

type Reader struct {
	local  KV
	scoped KV
	log    *zap.Logger
}

// NewReader binds the persisted store and the short-lived session-scoped
// store of one client.
func NewReader(local, scoped KV, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{local: local, scoped: scoped, log: log}
}

func (r *Reader) IsAuthenticated() bool {
	tok, ok, err := r.local.Get(KeyAccessToken)
	if err != nil {
		r.log.Warn("read access token", zap.Error(err))
		return false
	}
	return ok && strings.TrimSpace(tok) != ""
}

func (r *Reader) Record() (Record, error) {
	tok, ok, err := r.local.Get(KeyAccessToken)
	if err != nil {
		return Record{}, fmt.Errorf("read access token: %w", err)
	}
	if !ok || strings.TrimSpace(tok) == "" {
		return Record{}, ErrNoSession
	}
	refresh, _, err := r.local.Get(KeyRefreshToken)
	if err != nil {
		return Record{}, fmt.Errorf("read refresh token: %w", err)
	}
	raw, ok, err := r.local.Get(KeyUser)
	if err != nil {
		return Record{}, fmt.Errorf("read user: %w", err)
	}
	if !ok {
		return Record{}, fmt.Errorf("%w: user is missing", ErrMalformedSession)
	}
	u, err := decodeUser(raw)
	if err != nil {
		return Record{}, err
	}
	return Record{AccessToken: tok, RefreshToken: refresh, User: u}, nil
}

func (r *Reader) Role() (Role, error) {
	rec, err := r.Record()
	if err != nil {
		return "", err
	}
	return rec.User.Role, nil
}

// Login stores rec and mirrors it into jar.
func (r *Reader) Login(rec Record, jar Jar) error {
	if err := rec.validate(); err != nil {
		return err
	}
	userJSON, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := r.local.Set(KeyUser, string(userJSON)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	if err := r.local.Set(KeyRefreshToken, rec.RefreshToken); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	// The access token goes last: a partially written record never reads
	// as authenticated.
	if err := r.local.Set(KeyAccessToken, rec.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	r.SyncCookie(jar)
	return nil
}

// SyncCookie makes the cookies match the stored record and reports whether
// the client is authenticated. It never fails a navigation.
func (r *Reader) SyncCookie(jar Jar) bool {
	if jar == nil {
		return r.IsAuthenticated()
	}
	if !r.IsAuthenticated() {
		jar.Expire(CookieAuthenticated)
		jar.Expire(CookieRole)
		jar.Expire(CookieRoleHint)
		return false
	}

	jar.Set(CookieAuthenticated, "true")
	role, err := r.Role()
	if err != nil {
		jar.Expire(CookieRole)
		jar.Expire(CookieRoleHint)
		return true
	}
	jar.Set(CookieRole, role.String())
	jar.Set(CookieRoleHint, role.String())
	return true
}

// ClearSession is the emergency reset: every step runs even when an earlier
// one fails.
func (r *Reader) ClearSession(jar Jar) error {
	var errs []error
	if err := r.local.Delete(KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		errs = append(errs, fmt.Errorf("delete session keys: %w", err))
	}
	if r.scoped != nil {
		if err := r.scoped.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("clear session-scoped store: %w", err))
		}
	}
	if jar != nil {
		jar.Expire(CookieAuthenticated)
		jar.Expire(CookieRole)
		jar.Expire(CookieRoleHint)
	}
	return errors.Join(errs...)
}

// Scoped exposes the short-lived store that ClearSession wipes.
func (r *Reader) Scoped() KV {
	return r.scoped
}
