package httpserver

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"docuflow/portal/internal/guard"
)

// registerPageHandlers routes every path the API does not own through the
// navigation guard and then to the built front-end.
func registerPageHandlers(mux *http.ServeMux, deps Deps) {
	distDir := strings.TrimSpace(deps.FrontendDistDir)
	indexPath := ""
	if distDir != "" {
		candidate := filepath.Join(distDir, "index.html")
		if _, err := os.Stat(candidate); err == nil {
			indexPath = candidate
		} else {
			deps.Log.Warn("frontend index not found, pages will 404 after the guard", zap.String("dir", distDir))
		}
	}
	var fileServer http.Handler
	if indexPath != "" {
		fileServer = http.FileServer(http.Dir(distDir))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		cleanPath := path.Clean("/" + r.URL.Path)

		// Files under protected prefixes are pages too and pass the guard
		// before the file server sees them.
		var d guard.Decision
		guarded := false
		if guard.Classify(cleanPath) == guard.Protected {
			if d, guarded = navigate(w, r, deps, cleanPath); !guarded {
				return
			}
		}

		if indexPath != "" && cleanPath != "/" {
			fullPath := filepath.Join(distDir, filepath.FromSlash(strings.TrimPrefix(cleanPath, "/")))
			if info, err := os.Stat(fullPath); err == nil && !info.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		if !guarded {
			var ok bool
			if d, ok = navigate(w, r, deps, cleanPath); !ok {
				return
			}
		}
		if indexPath == "" {
			writeError(w, http.StatusNotFound, "frontend not available")
			return
		}
		w.Header().Set("X-Route-Class", d.Class.String())
		http.ServeFile(w, r, indexPath)
	})
}

// navigate runs the client's guard for p. It reports false when the response
// has already been written, either a redirect or a client error.
func navigate(w http.ResponseWriter, r *http.Request, deps Deps, p string) (guard.Decision, bool) {
	sh, ok := clientShell(w, r, deps)
	if !ok {
		return guard.Decision{}, false
	}
	d := sh.Guard.Navigate(p, jarFor(w, r, deps))
	if !d.Allowed() {
		http.Redirect(w, r, d.Redirect, http.StatusFound)
		return d, false
	}
	return d, true
}
