package handler

import (
	"net/http"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Ledger Handlers
// ============================================================

func listEntriesHandler(svc *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /entries")
		defer span.End()
		userID := UserIDFromContext(ctx)

		var entries []domain.LedgerEntry
		var err error
		if accountID := r.URL.Query().Get("account_id"); accountID != "" {
			entries, err = svc.ListByAccount(ctx, accountID, userID)
		} else {
			entries, err = svc.ListByUser(ctx, userID)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func createEntryHandler(svc *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /entries")
		defer span.End()
		var req domain.EntryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		entry, err := svc.CreateEntry(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}

func deleteEntryHandler(svc *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /entries/{entryId}")
		defer span.End()
		if err := svc.DeleteEntry(ctx, chi.URLParam(r, "entryId"), UserIDFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func recategorizeEntryHandler(svc *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /entries/{entryId}/category")
		defer span.End()
		var req domain.RecategorizeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.CategoryID == "" {
			writeError(w, http.StatusBadRequest, "category_id is required")
			return
		}
		if err := svc.Recategorize(ctx, chi.URLParam(r, "entryId"), UserIDFromContext(ctx), req.CategoryID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createTransferHandler(svc *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /transfers")
		defer span.End()
		var req domain.TransferRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		legs, err := svc.CreateTransfer(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, legs)
	}
}
