package http

import (
	"context"
	"net/http"
	"time"

	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/utils"
	"github.com/MKhiriev/go-care-keeper/models"
)

// failedEntry is the public view of a failed queue entry. The payload is not
// exposed.
type failedEntry struct {
	ID           string            `json:"id"`
	EvaluationID string            `json:"evaluationId"`
	Action       models.SyncAction `json:"action"`
	Timestamp    time.Time         `json:"timestamp"`
	RetryCount   int               `json:"retryCount"`
}

type retryResponse struct {
	Reset int              `json:"reset"`
	State models.SyncState `json:"state"`
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, h.engine.State(), http.StatusOK)
}

// triggerSync runs one cycle and responds with the resulting state. The cycle
// is not cancelled when the caller disconnects.
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	h.engine.Sync(context.WithoutCancel(r.Context()))
	h.writeJSON(w, r, h.engine.State(), http.StatusOK)
}

func (h *Handler) retryFailed(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	n, err := h.engine.RetryFailed(r.Context())
	if err != nil {
		log.Err(err).Str("func", "*Handler.retryFailed").Msg("failed to reset failed mutations")
		utils.WriteError(w, err, statusFromError(err))
		return
	}

	log.Info().Int("reset", n).Msg("failed mutations reset")
	h.writeJSON(w, r, retryResponse{Reset: n, State: h.engine.State()}, http.StatusOK)
}

func (h *Handler) listFailed(w http.ResponseWriter, r *http.Request) {
	entries := h.engine.FailedEntries()

	result := make([]failedEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, failedEntry{
			ID:           e.ID,
			EvaluationID: e.EvaluationID,
			Action:       e.Action,
			Timestamp:    e.Timestamp,
			RetryCount:   e.RetryCount,
		})
	}

	h.writeJSON(w, r, result, http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	if _, err := utils.WriteJSON(w, data, status); err != nil {
		logger.FromRequest(r).Err(err).Str("func", "*Handler.writeJSON").Msg("failed to write response")
	}
}
