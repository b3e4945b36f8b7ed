package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mailqueue/internal/csvparser"
	"mailqueue/internal/queue"
)

// Handler is the thin HTTP surface over the queue manager. All delivery
// semantics live in the manager; this layer only decodes, delegates, and
// encodes.
type Handler struct {
	Manager *queue.Manager
	Log     *zap.Logger
}

// Router mounts all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/send", h.SendEmail)
	r.Post("/send/batch", h.SendBatch)
	r.Get("/stats", h.Stats)
	r.Get("/failed", h.ListFailed)
	r.Post("/retry", h.RetryFailed)
	r.Post("/drain", h.Drain)
	r.Post("/cleanup", h.Cleanup)

	return r
}

func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req queue.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.Manager.Enqueue(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id": job.ID,
	})
}

// SendBatch enqueues one job per recipient row of an uploaded CSV.
// Subject and template come from query parameters; per-row columns become
// template variables.
func (h *Handler) SendBatch(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	templateID := r.URL.Query().Get("template_id")
	if templateID == "" {
		http.Error(w, "template_id query parameter is required", http.StatusBadRequest)
		return
	}

	rows, err := csvparser.Parse(r.Body, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		job, err := h.Manager.Enqueue(r.Context(), queue.EnqueueRequest{
			Recipients: []string{row.Email},
			Subject:    subject,
			TemplateID: templateID,
			Variables:  row.Variables,
		})
		if err != nil {
			h.Log.Error("batch enqueue failed",
				zap.String("recipient", row.Email),
				zap.Error(err),
			)
			continue
		}
		ids = append(ids, job.ID)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"enqueued": len(ids),
		"ids":      ids,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Manager.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListFailed(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)

	jobs, err := h.Manager.ListFailed(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	maxCount := intQuery(r, "max", 50)

	requeued, err := h.Manager.RetryFailed(r.Context(), maxCount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requeued": requeued,
	})
}

func (h *Handler) Drain(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Drain(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"drained": true,
	})
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	olderThan := r.URL.Query().Get("older_than")
	d, err := time.ParseDuration(olderThan)
	if err != nil || d <= 0 {
		http.Error(w, "older_than must be a positive duration", http.StatusBadRequest)
		return
	}

	removed, err := h.Manager.Cleanup(r.Context(), time.Now().UTC().Add(-d))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
