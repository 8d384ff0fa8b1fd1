package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"genserver/internal/admission"
	"genserver/internal/domain"
)

type batchCreateRequest struct {
	Params json.RawMessage  `json:"params"`
	Items  []admission.Item `json:"items"`
}

type batchCreateResponse struct {
	BatchID    string `json:"batch_id"`
	TotalItems int    `json:"total_items"`
	PollingURL string `json:"polling_url"`
}

// BatchesCreate admits a batch of generation items.
func (a *App) BatchesCreate(w http.ResponseWriter, r *http.Request) {
	var req batchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	batch, err := a.Admission.AdmitBatch(r.Context(), a.currentUserID(r), req.Params, req.Items)
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusAccepted, batchCreateResponse{
		BatchID:    batch.ID,
		TotalItems: batch.TotalItems,
		PollingURL: "/v1/batches/" + batch.ID,
	})
}

type batchItemView struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// BatchesGet serves the owner's view of a batch with recomputed stats.
func (a *App) BatchesGet(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	view, err := a.Batches.GetBatchView(r.Context(), batchID, a.currentUserID(r))
	if err != nil {
		a.domainError(w, err)
		return
	}

	items := make([]batchItemView, 0, len(view.Items))
	for _, job := range view.Items {
		items = append(items, jobToItemView(job))
	}

	a.json(w, http.StatusOK, map[string]any{
		"id":     view.Batch.ID,
		"status": view.Batch.Status,
		"stats":  view.Stats,
		"items":  items,
	})
}

func jobToItemView(job domain.Job) batchItemView {
	item := batchItemView{JobID: job.ID, Status: string(job.Status)}
	if len(job.ResultJSON) > 0 {
		item.Result = json.RawMessage(job.ResultJSON)
	}
	if job.ErrorMessage != "" {
		msg := job.ErrorMessage
		item.Error = &msg
	}
	return item
}
