package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mainite/videoslim/internal/browse"
	"github.com/mainite/videoslim/internal/bus"
	"github.com/mainite/videoslim/internal/jobs"
	"github.com/mainite/videoslim/internal/logger"
	"github.com/mainite/videoslim/internal/profile"
	"github.com/mainite/videoslim/internal/store"
)

// Profiles lists and reloads encoding profiles.
type Profiles interface {
	Names() []string
	Reload() []string
}

// Runner starts compression tasks. Implemented by *jobs.Orchestrator.
type Runner interface {
	Start(task *jobs.Task) error
	Running() bool
}

// Browser lists directories under a root.
type Browser interface {
	Root() string
	Browse(ctx context.Context, path string) (*browse.BrowseResult, error)
}

// History is the part of the store the API reads and writes.
type History interface {
	GetTask(id string) (*jobs.TaskSummary, error)
	ListTasks(limit int) ([]*jobs.TaskSummary, error)
	DeleteTask(id string) error
	Stats() (store.Stats, error)
	Settings() (map[string]string, error)
	SetSettings(values map[string]string) error
}

// Handler serves the HTTP API.
type Handler struct {
	browser   Browser
	profiles  Profiles
	runner    Runner
	pub       jobs.Publisher
	presenter *Presenter
	exts      []string
	history   History
}

// NewHandler creates a Handler. Messages the API raises itself go to pub so
// they reach the presenter like any other.
func NewHandler(browser Browser, profiles Profiles, runner Runner, pub jobs.Publisher, presenter *Presenter, exts []string) *Handler {
	return &Handler{
		browser:   browser,
		profiles:  profiles,
		runner:    runner,
		pub:       pub,
		presenter: presenter,
		exts:      exts,
	}
}

// SetHistory enables the task history and settings endpoints.
func (h *Handler) SetHistory(history History) {
	h.history = history
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Profiles handles GET /api/profiles
func (h *Handler) Profiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": h.profiles.Names(),
	})
}

// ReloadProfiles handles POST /api/profiles/reload
func (h *Handler) ReloadProfiles(w http.ResponseWriter, r *http.Request) {
	names := h.profiles.Reload()
	h.pub.Send(bus.ProfilesLoaded{Names: names})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": names,
	})
}

// CompressResponse is returned when a task is accepted.
type CompressResponse struct {
	TaskID  string               `json:"task_id"`
	Files   []string             `json:"files"`
	Skipped []jobs.SkippedTarget `json:"skipped"`
}

// Compress handles POST /api/compress
func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	var opts jobs.TaskOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(opts.Targets) == 0 {
		writeError(w, http.StatusBadRequest, "no targets specified")
		return
	}
	if opts.Profile == "" {
		opts.Profile = profile.DefaultName
	}

	// Checked before scanning so a busy request does no filesystem work.
	if h.runner.Running() {
		h.rejectBusy(w)
		return
	}

	task := jobs.NewTask(opts, h.exts)
	if err := h.runner.Start(task); err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			h.rejectBusy(w)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary := task.Summary()
	skipped := summary.Skipped
	if skipped == nil {
		skipped = []jobs.SkippedTarget{}
	}
	writeJSON(w, http.StatusAccepted, CompressResponse{
		TaskID:  summary.ID,
		Files:   summary.Files,
		Skipped: skipped,
	})
}

func (h *Handler) rejectBusy(w http.ResponseWriter) {
	h.pub.Send(bus.Error{Title: "Error", Text: jobs.ErrBusy.Error()})
	writeError(w, http.StatusConflict, jobs.ErrBusy.Error())
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.presenter.Snapshot())
}

// Browse handles GET /api/browse?path=...
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = h.browser.Root()
	}

	result, err := h.browser.Browse(r.Context(), path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListTasks handles GET /api/tasks?limit=N
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not available")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	tasks, err := h.history.ListTasks(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []*jobs.TaskSummary{}
	}
	stats, err := h.history.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"stats": stats,
	})
}

// GetTask handles GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not available")
		return
	}

	task, err := h.history.GetTask(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not available")
		return
	}

	if err := h.history.DeleteTask(r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetSettings handles GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "settings are not available")
		return
	}

	settings, err := h.history.Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /api/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "settings are not available")
		return
	}

	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.history.SetSettings(values); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("Settings updated", "keys", len(values))
	h.GetSettings(w, r)
}
