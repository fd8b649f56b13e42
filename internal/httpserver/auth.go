package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"docuflow/portal/internal/audit"
	"docuflow/portal/internal/auth"
	"docuflow/portal/internal/eventbus"
	"docuflow/portal/internal/session"
)

const (
	msgLoginFailed    = "Invalid username or password."
	msgSessionExpired = "Your session has expired. Please sign in again."
)

func loginResponse(sess auth.Session) map[string]any {
	rec := sess.Record()
	return map[string]any{
		"access_token":  rec.AccessToken,
		"refresh_token": rec.RefreshToken,
		"session_id":    sess.ID,
		"user":          rec.User,
		"redirect":      rec.User.Role.Dashboard(),
		"expires_at":    sess.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func registerAuthHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			sh.Bus.Publish(eventbus.LoginError, eventbus.LoginFailed{Message: "Username and password are required."})
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		sess, err := deps.Auth.Login(req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				auditReq(deps.Audit, r, req.Username, "auth.login", "", audit.OutcomeFailure, "", "invalid credentials")
				sh.Bus.Publish(eventbus.LoginError, eventbus.LoginFailed{Message: msgLoginFailed})
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			auditReq(deps.Audit, r, req.Username, "auth.login", "", audit.OutcomeFailure, "", err.Error())
			internalError(w, sh, err, "login failed")
			return
		}

		rec := sess.Record()
		if err := sh.Session.Login(rec, jarFor(w, r, deps)); err != nil {
			_ = deps.Auth.Logout(sess.AccessToken)
			auditReq(deps.Audit, r, sess.Username, "auth.login", "", audit.OutcomeFailure, sess.ID, err.Error())
			internalError(w, sh, err, "store session failed")
			return
		}
		auditReq(deps.Audit, r, sess.Username, "auth.login", "", audit.OutcomeSuccess, sess.ID, "")
		sh.Bus.Publish(eventbus.LoginSuccess, eventbus.LoginSucceeded{
			Message:  fmt.Sprintf("Welcome back, %s.", sess.Username),
			UserData: rec.User,
		})
		writeJSON(w, http.StatusOK, loginResponse(sess))
	})

	mux.HandleFunc("/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}

		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		refresh := strings.TrimSpace(req.RefreshToken)
		if refresh == "" {
			if rec, err := sh.Session.Record(); err == nil {
				refresh = rec.RefreshToken
			}
		}
		if refresh == "" {
			writeError(w, http.StatusUnauthorized, "missing refresh token")
			return
		}

		jar := jarFor(w, r, deps)
		next, err := deps.Auth.Refresh(refresh)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				auditReq(deps.Audit, r, "", "auth.refresh", "", audit.OutcomeFailure, "", "invalid refresh token")
				if cerr := sh.Session.ClearSession(jar); cerr != nil {
					sh.Capture(cerr)
				}
				sh.Notify(eventbus.KindWarning, msgSessionExpired)
				writeError(w, http.StatusUnauthorized, "invalid refresh token")
				return
			}
			internalError(w, sh, err, "refresh failed")
			return
		}
		if err := sh.Session.Login(next.Record(), jar); err != nil {
			internalError(w, sh, err, "store session failed")
			return
		}
		auditReq(deps.Audit, r, next.Username, "auth.refresh", "", audit.OutcomeSuccess, next.ID, "")
		writeJSON(w, http.StatusOK, loginResponse(next))
	})

	mux.HandleFunc("/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		sess, ok := requireSession(w, r, deps, sh, "")
		if !ok {
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":         sess.UserID,
			"username":   sess.Username,
			"role":       sess.Role,
			"dashboard":  sess.Role.Dashboard(),
			"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		token, err := accessToken(r, sh)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}

		// The client's copy is dropped even when the server no longer knows
		// the token.
		sess, _ := deps.Auth.ValidateToken(token)
		outcome, detail := audit.OutcomeSuccess, ""
		if err := deps.Auth.Logout(token); err != nil {
			outcome, detail = audit.OutcomeFailure, err.Error()
		}
		if err := sh.Session.ClearSession(jarFor(w, r, deps)); err != nil {
			auditReq(deps.Audit, r, sess.Username, "auth.logout", "", audit.OutcomeFailure, sess.ID, err.Error())
			internalError(w, sh, err, "clear session failed")
			return
		}
		auditReq(deps.Audit, r, sess.Username, "auth.logout", "", outcome, sess.ID, detail)
		sh.Notify(eventbus.KindInfo, "You have been signed out.")
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/v1/auth/change-password", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		token, err := accessToken(r, sh)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		sess, _ := deps.Auth.ValidateToken(token)

		var req struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.CurrentPassword == "" || req.NewPassword == "" {
			writeError(w, http.StatusBadRequest, "current_password and new_password are required")
			return
		}

		if err := deps.Auth.ChangePassword(token, req.CurrentPassword, req.NewPassword); err != nil {
			if errors.Is(err, auth.ErrWeakPassword) {
				auditReq(deps.Audit, r, sess.Username, "auth.change_password", "", audit.OutcomeFailure, sess.ID, "weak password")
				sh.Notify(eventbus.KindWarning, "The new password does not meet the password policy.")
				writeError(w, http.StatusBadRequest, "new password does not meet policy")
				return
			}
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrInvalidCredentials) {
				auditReq(deps.Audit, r, sess.Username, "auth.change_password", "", audit.OutcomeFailure, sess.ID, "invalid credentials or token")
				sh.Notify(eventbus.KindError, "The current password is incorrect.")
				writeError(w, http.StatusUnauthorized, "invalid credentials or token")
				return
			}
			auditReq(deps.Audit, r, sess.Username, "auth.change_password", "", audit.OutcomeFailure, sess.ID, err.Error())
			internalError(w, sh, err, "change password failed")
			return
		}
		auditReq(deps.Audit, r, sess.Username, "auth.change_password", "", audit.OutcomeSuccess, sess.ID, "")
		sh.Notify(eventbus.KindSuccess, "Password changed.")
		w.WriteHeader(http.StatusNoContent)
	})
}

// registerDevHandlers exposes a login that skips credentials. It is only
// mounted when DEV_MOCK_LOGIN is enabled.
func registerDevHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/dev/mock-login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		var req struct {
			Role     string `json:"role"`
			Username string `json:"username"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		role, err := session.ParseRole(req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		username := strings.TrimSpace(req.Username)
		if username == "" {
			username = "dev-" + role.String()
		}

		rec := session.Record{
			AccessToken:  "dev-" + uuid.NewString(),
			RefreshToken: "dev-" + uuid.NewString(),
			User:         session.User{ID: "dev-" + role.String(), Username: username, Role: role},
		}
		if err := sh.Session.Login(rec, jarFor(w, r, deps)); err != nil {
			internalError(w, sh, err, "store session failed")
			return
		}
		auditReq(deps.Audit, r, username, "dev.mock_login", role.String(), audit.OutcomeSuccess, "", "")
		sh.Bus.Publish(eventbus.LoginSuccess, eventbus.LoginSucceeded{
			Message:  fmt.Sprintf("Signed in as %s (development).", role),
			UserData: rec.User,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  rec.AccessToken,
			"refresh_token": rec.RefreshToken,
			"user":          rec.User,
			"redirect":      role.Dashboard(),
		})
	})
}
