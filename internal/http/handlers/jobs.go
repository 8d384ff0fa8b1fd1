package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"genserver/internal/domain"
)

type jobCreateRequest struct {
	Prompt string          `json:"prompt"`
	Params json.RawMessage `json:"params"`
}

// JobsCreate is the single-item convenience endpoint.
func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Admission.AdmitSingle(r.Context(), a.currentUserID(r), domain.SingleGenerationPayload{
		Prompt: req.Prompt,
		Params: req.Params,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusAccepted, map[string]string{
		"job_id":      job.ID,
		"polling_url": "/v1/jobs/" + job.ID,
	})
}

// JobsGet serves one job snapshot to its owner.
func (a *App) JobsGet(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	if job.OwnerID != a.currentUserID(r) {
		a.domainError(w, domain.ErrForbidden)
		return
	}

	item := jobToItemView(*job)
	a.json(w, http.StatusOK, map[string]any{
		"job_id":     item.JobID,
		"status":     item.Status,
		"result":     item.Result,
		"error":      item.Error,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	})
}
