package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type paymentCreateRequest struct {
	ExternalID string `json:"external_id"`
	Credits    int64  `json:"credits"`
}

// PaymentsCreate registers a payment intent awaiting provider confirmation.
func (a *App) PaymentsCreate(w http.ResponseWriter, r *http.Request) {
	var req paymentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	payment, err := a.Reconciler.CreatePayment(r.Context(), a.currentUserID(r), req.ExternalID, req.Credits)
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusCreated, map[string]string{
		"id":     payment.ID,
		"status": string(payment.Status),
	})
}

// PaymentsWebhook receives provider pushes. It always acknowledges with 200
// immediately and processes the event asynchronously; malformed or unknown
// events are dropped silently so the provider never retries them.
func (a *App) PaymentsWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		body = nil
	}

	go func(raw []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		a.Reconciler.HandleWebhookEvent(ctx, raw)
	}(body)

	a.json(w, http.StatusOK, map[string]bool{"received": true})
}

// PaymentsCheck is the user-initiated fallback poll. It runs through the
// same settlement function as the webhook.
func (a *App) PaymentsCheck(w http.ResponseWriter, r *http.Request) {
	result, err := a.Reconciler.CheckPayment(r.Context(), chi.URLParam(r, "id"), a.currentUserID(r))
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"success": result.Success,
		"status":  result.Status,
	})
}

// CreditsGet returns the caller's current balance.
func (a *App) CreditsGet(w http.ResponseWriter, r *http.Request) {
	balance, err := a.Ledger.Balance(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int64{"balance": balance})
}
