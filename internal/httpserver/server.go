package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"docuflow/portal/internal/audit"
	"docuflow/portal/internal/auth"
	"docuflow/portal/internal/config"
	"docuflow/portal/internal/lifecycle"
	"docuflow/portal/internal/session"
	"docuflow/portal/internal/shell"
)

type AuthService interface {
	Login(username, password string) (auth.Session, error)
	ValidateToken(token string) (auth.Session, error)
	Refresh(refreshToken string) (auth.Session, error)
	Logout(token string) error
	ChangePassword(token, currentPassword, newPassword string) error
	ListSessionViews() []auth.SessionView
	RevokeSessionByID(sessionID string) error
}

// Shells hands out the per-client context for a client id.
type Shells interface {
	Get(clientID string) (*shell.Shell, error)
}

type AuditLogger interface {
	Log(e audit.Event) error
}

type Deps struct {
	Auth            AuthService
	Shells          Shells
	Audit           AuditLogger
	Events          lifecycle.Publisher
	Log             *zap.Logger
	Ready           func(ctx context.Context) error
	FrontendDistDir string
	CookieSecure    bool
	DevMockLogin    bool
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewHandler(deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// NewHandler builds the full middleware chain around the route table.
func NewHandler(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				deps.Log.Warn("readiness check failed", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/v1/info", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "docuflow-portal",
			"version": "0.1.0",
		})
	})

	registerAuthHandlers(mux, deps)
	registerSessionHandlers(mux, deps)
	registerSessionAdminHandlers(mux, deps)
	registerNotificationHandlers(mux, deps)
	registerClientErrorHandlers(mux, deps)
	if deps.DevMockLogin {
		registerDevHandlers(mux, deps)
	}
	registerPageHandlers(mux, deps)

	var h http.Handler = mux
	h = recoverMiddleware(h, deps)
	h = clientMiddleware(h, deps.CookieSecure)
	h = loggingMiddleware(h, deps.Log)
	return h
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// clientShell resolves the shell of the client making the request.
func clientShell(w http.ResponseWriter, r *http.Request, deps Deps) (*shell.Shell, bool) {
	if deps.Shells == nil {
		writeError(w, http.StatusServiceUnavailable, "client registry unavailable")
		return nil, false
	}
	sh, err := deps.Shells.Get(clientIDFromContext(r.Context()))
	if err != nil {
		deps.Log.Error("resolve client shell", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "client state unavailable")
		return nil, false
	}
	return sh, true
}

func jarFor(w http.ResponseWriter, r *http.Request, deps Deps) session.Jar {
	return session.NewHTTPJar(w, r, deps.CookieSecure)
}

// accessToken prefers an explicit bearer token and falls back to the token in
// the client's stored session record.
func accessToken(r *http.Request, sh *shell.Shell) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		return extractBearerToken(h)
	}
	rec, err := sh.Session.Record()
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

func requireSession(w http.ResponseWriter, r *http.Request, deps Deps, sh *shell.Shell, requiredRole session.Role) (auth.Session, bool) {
	if deps.Auth == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return auth.Session{}, false
	}
	token, err := accessToken(r, sh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return auth.Session{}, false
	}

	sess, err := deps.Auth.ValidateToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return auth.Session{}, false
	}

	if requiredRole != "" && sess.Role != requiredRole {
		writeError(w, http.StatusForbidden, "forbidden")
		return auth.Session{}, false
	}
	return sess, true
}

// internalError answers 500 and reports err to the client as an unhandled
// failure.
func internalError(w http.ResponseWriter, sh *shell.Shell, err error, message string) {
	if sh != nil {
		sh.Capture(fmt.Errorf("%s: %w", message, err))
	}
	writeError(w, http.StatusInternalServerError, message)
}

func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func auditReq(a AuditLogger, r *http.Request, actor, action, target, outcome, sessionID, detail string) {
	if a == nil {
		return
	}
	e := audit.Event{
		Actor:     actor,
		Action:    action,
		Target:    target,
		Outcome:   outcome,
		Detail:    strings.TrimSpace(detail),
		ClientID:  clientIDFromContext(r.Context()),
		RequestID: requestIDFromContext(r.Context()),
		RemoteIP:  clientIP(r),
	}
	if sessionID != "" {
		if e.Detail != "" {
			e.Detail = "sid=" + sessionID + " | " + e.Detail
		} else {
			e.Detail = "sid=" + sessionID
		}
	}
	_ = a.Log(e)
}
