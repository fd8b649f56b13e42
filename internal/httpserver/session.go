package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"docuflow/portal/internal/audit"
	"docuflow/portal/internal/auth"
	"docuflow/portal/internal/eventbus"
	"docuflow/portal/internal/lifecycle"
	"docuflow/portal/internal/session"
)

func registerSessionHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}

		authenticated := sh.Session.SyncCookie(jarFor(w, r, deps))
		resp := map[string]any{"authenticated": authenticated}
		if authenticated {
			rec, err := sh.Session.Record()
			if err != nil {
				deps.Log.Debug("stored session unreadable", zap.Error(err))
				resp["dashboard"] = session.HomePath
			} else {
				resp["role"] = rec.User.Role
				resp["user"] = rec.User
				resp["dashboard"] = rec.User.Role.Dashboard()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	// Emergency reset of everything the client stores about its session.
	mux.HandleFunc("/v1/session/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}

		actor := ""
		if rec, err := sh.Session.Record(); err == nil {
			actor = rec.User.Username
			if deps.Auth != nil {
				if err := deps.Auth.Logout(rec.AccessToken); err != nil && !errors.Is(err, auth.ErrInvalidToken) {
					deps.Log.Warn("revoke token during session clear", zap.Error(err))
				}
			}
		}
		if err := sh.Session.ClearSession(jarFor(w, r, deps)); err != nil {
			auditReq(deps.Audit, r, actor, "session.clear", sh.ID, audit.OutcomeFailure, "", err.Error())
			internalError(w, sh, err, "clear session failed")
			return
		}
		auditReq(deps.Audit, r, actor, "session.clear", sh.ID, audit.OutcomeSuccess, "", "")
		if deps.Events != nil {
			deps.Events.Publish(lifecycle.TopicSessionCleared, sh.ID, "client")
		}
		sh.Notify(eventbus.KindInfo, "Session data cleared.")
		w.WriteHeader(http.StatusNoContent)
	})
}

func registerSessionAdminHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/system/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		adminSession, ok := requireSession(w, r, deps, sh, session.RoleAdmin)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": deps.Auth.ListSessionViews()})
		auditReq(deps.Audit, r, adminSession.Username, "session.list", "", audit.OutcomeSuccess, adminSession.ID, "")
	})

	mux.HandleFunc("/v1/system/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		adminSession, ok := requireSession(w, r, deps, sh, session.RoleAdmin)
		if !ok {
			return
		}

		sessionID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/v1/system/sessions/"))
		if sessionID == "" || strings.Contains(sessionID, "/") {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		if err := deps.Auth.RevokeSessionByID(sessionID); err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				auditReq(deps.Audit, r, adminSession.Username, "session.revoke", sessionID, audit.OutcomeFailure, adminSession.ID, "session not found")
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			auditReq(deps.Audit, r, adminSession.Username, "session.revoke", sessionID, audit.OutcomeFailure, adminSession.ID, err.Error())
			internalError(w, sh, err, "revoke session failed")
			return
		}
		auditReq(deps.Audit, r, adminSession.Username, "session.revoke", sessionID, audit.OutcomeSuccess, adminSession.ID, "")
		sh.Notify(eventbus.KindSuccess, "Session revoked.")
		w.WriteHeader(http.StatusNoContent)
	})
}
