package handler

import (
	"net/http"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Accounts Handlers
// ============================================================

func listAccountsHandler(svc *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts")
		defer span.End()
		accounts, err := svc.List(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func createAccountHandler(svc *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /accounts")
		defer span.End()
		var req domain.AccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		account, err := svc.Create(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, account)
	}
}

func getAccountHandler(svc *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/{accountId}")
		defer span.End()
		account, err := svc.Get(ctx, chi.URLParam(r, "accountId"), UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func updateAccountHandler(svc *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /accounts/{accountId}")
		defer span.End()
		var req domain.AccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.Update(ctx, chi.URLParam(r, "accountId"), UserIDFromContext(ctx), &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteAccountHandler(svc *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /accounts/{accountId}")
		defer span.End()
		if err := svc.Delete(ctx, chi.URLParam(r, "accountId"), UserIDFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func linkAccountHandler(svc *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /accounts/{accountId}/link")
		defer span.End()
		var req domain.LinkRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.Link(ctx, chi.URLParam(r, "accountId"), UserIDFromContext(ctx), &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func totalBalanceHandler(svc *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/balance")
		defer span.End()
		currency := r.URL.Query().Get("currency")
		if currency == "" {
			writeError(w, http.StatusBadRequest, "currency query parameter is required")
			return
		}
		total, err := svc.TotalBalance(ctx, UserIDFromContext(ctx), currency)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"currency":      currency,
			"total_balance": total,
		})
	}
}

// ============================================================
// Sync Handlers
// ============================================================

func triggerSyncHandler(syncer *service.Syncer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /accounts/{accountId}/sync")
		defer span.End()
		var req domain.SyncRequest
		if r.ContentLength > 0 {
			if !decodeJSON(w, r, &req) {
				return
			}
		}
		err := syncer.Enqueue(ctx, chi.URLParam(r, "accountId"), UserIDFromContext(ctx), req.ActualBalance)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func syncStatusHandler(svc *service.Accounts, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /accounts/{accountId}/sync")
		defer span.End()
		status, err := svc.SyncStatus(ctx, chi.URLParam(r, "accountId"), UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
