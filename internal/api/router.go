package api

import (
	"net/http"

	"github.com/mainite/videoslim"
)

// registerAPIRoutes registers all API endpoints on the given mux
func registerAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/profiles", h.Profiles)
	mux.HandleFunc("POST /api/profiles/reload", h.ReloadProfiles)

	mux.HandleFunc("POST /api/compress", h.Compress)
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("GET /api/events", h.Events)

	mux.HandleFunc("GET /api/browse", h.Browse)

	// History
	mux.HandleFunc("GET /api/tasks", h.ListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", h.GetTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.DeleteTask)

	mux.HandleFunc("GET /api/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/settings", h.UpdateSettings)
}

// NewRouter creates a new HTTP router with all API endpoints
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	registerAPIRoutes(mux, h)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("VideoSlim " + videoslim.Version + " API\n"))
	})

	return mux
}
