package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"genserver/internal/admission"
	"genserver/internal/batchview"
	"genserver/internal/domain"
	"genserver/internal/ledger"
	"genserver/internal/middleware"
	"genserver/internal/reconcile"
)

// App is the handler container; every route hangs off it.
type App struct {
	Admission  *admission.Controller
	Batches    *batchview.Aggregator
	Jobs       domain.JobRepository
	Ledger     *ledger.Ledger
	Reconciler *reconcile.Reconciler
	Logger     zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// domainError maps sentinel errors to their HTTP responses. Unknown errors
// become an opaque 500 so internals never leak.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrBackpressureExceeded):
		a.error(w, http.StatusTooManyRequests, "backpressure_exceeded", "too many queued jobs, retry later")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "access denied")
	default:
		a.Logger.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
