package handler

import (
	"net/http"

	"github.com/nexabudget/nexabudget-go/internal/domain"
	"github.com/nexabudget/nexabudget-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Categories Handlers
// ============================================================

func listCategoriesHandler(svc *service.Categories, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /categories")
		defer span.End()
		categories, err := svc.List(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

func createCategoryHandler(svc *service.Categories, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /categories")
		defer span.End()
		var req domain.CategoryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		category, err := svc.Create(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, category)
	}
}

func updateCategoryHandler(svc *service.Categories, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /categories/{categoryId}")
		defer span.End()
		var req domain.CategoryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.Update(ctx, chi.URLParam(r, "categoryId"), UserIDFromContext(ctx), &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteCategoryHandler(svc *service.Categories, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /categories/{categoryId}")
		defer span.End()
		if err := svc.Delete(ctx, chi.URLParam(r, "categoryId"), UserIDFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
