package handler

import (
	"net/http"

	"github.com/nexabudget/nexabudget-go/internal/port"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Bank Onboarding Handlers
//
// Thin passthrough to the aggregation integrator: list institutions,
// start a consent flow, list the external accounts it unlocked.
// ============================================================

func listBanksHandler(feed port.BankFeed, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /banks")
		defer span.End()
		country := r.URL.Query().Get("country")
		if country == "" {
			writeError(w, http.StatusBadRequest, "country query parameter is required")
			return
		}
		banks, err := feed.GetBanks(ctx, country)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, banks)
	}
}

func createWebTokenHandler(feed port.BankFeed, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /banks/web-token")
		defer span.End()
		var req struct {
			InstitutionID string `json:"institution_id"`
			AccountID     string `json:"account_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.InstitutionID == "" {
			writeError(w, http.StatusBadRequest, "institution_id is required")
			return
		}
		token, err := feed.CreateWebToken(ctx, req.InstitutionID, req.AccountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, token)
	}
}

func listBankAccountsHandler(feed port.BankFeed, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /banks/requisitions/{requisitionId}/accounts")
		defer span.End()
		accounts, err := feed.GetBankAccounts(ctx, chi.URLParam(r, "requisitionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}
