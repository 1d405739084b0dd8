package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Events handles GET /api/events (SSE endpoint)
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	eventCh := h.presenter.Subscribe()
	defer h.presenter.Unsubscribe(eventCh)

	initialData, _ := json.Marshal(map[string]interface{}{
		"type":  "init",
		"state": h.presenter.Snapshot(),
	})
	fmt.Fprintf(w, "data: %s\n\n", initialData)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-eventCh:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
