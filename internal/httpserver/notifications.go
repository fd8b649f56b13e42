package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"docuflow/portal/internal/eventbus"
)

func registerNotificationHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			resp := map[string]any{
				"toasts": sh.Toasts.Visible(),
				"banner": nil,
				"modal":  nil,
			}
			if b, ok := sh.Banner.Current(); ok {
				resp["banner"] = b
			}
			if m, ok := sh.Modal.Current(); ok {
				resp["modal"] = m
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var n eventbus.Notification
			if err := decodeJSON(w, r, &n); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if n.Kind == "" {
				n.Kind = eventbus.KindInfo
			}
			if !n.Kind.Valid() {
				writeError(w, http.StatusBadRequest, "unknown notification type")
				return
			}
			if strings.TrimSpace(n.Message) == "" {
				writeError(w, http.StatusBadRequest, "message is required")
				return
			}
			if n.Duration < 0 {
				writeError(w, http.StatusBadRequest, "duration must not be negative")
				return
			}
			sh.Bus.Publish(eventbus.ShowNotification, n)
			w.WriteHeader(http.StatusAccepted)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/v1/notifications/toasts/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v1/notifications/toasts/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, http.StatusBadRequest, "invalid toast id")
			return
		}
		if !sh.Toasts.Dismiss(id) {
			writeError(w, http.StatusNotFound, "toast not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/v1/notifications/modal/dismiss", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		if !sh.Modal.Dismiss() {
			writeError(w, http.StatusNotFound, "no open dialog")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/v1/notifications/stream", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		serveStream(w, r, sh, deps.Log)
	})
}

// Failures the browser could not handle itself: a page that failed to render
// and promise rejections nobody caught.
func registerClientErrorHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/client-errors", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sh, ok := clientShell(w, r, deps)
		if !ok {
			return
		}
		var req struct {
			Kind   string `json:"kind"`
			Error  string `json:"error"`
			Info   string `json:"info"`
			Reason string `json:"reason"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		switch req.Kind {
		case "render":
			if req.Error == "" {
				writeError(w, http.StatusBadRequest, "error is required")
				return
			}
			sh.RenderFault(req.Error, req.Info)
		case "rejection":
			reason := req.Reason
			if reason == "" {
				reason = "unknown rejection"
			}
			sh.Capture(errors.New(reason))
		default:
			writeError(w, http.StatusBadRequest, "kind must be render or rejection")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}
