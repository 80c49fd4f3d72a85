package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"suvidha/internal/catalog/models"
	"suvidha/internal/http/shared"
	"suvidha/internal/platform/middleware"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

// Service defines the catalog operations the handler depends on.
type Service interface {
	RegisterScheme(ctx context.Context, id domain.SchemeID, name string, benefit models.Benefit, deadline *time.Time) (*models.Scheme, error)
	GetScheme(ctx context.Context, id domain.SchemeID) (*models.Scheme, error)
	ListSchemes(ctx context.Context) ([]*models.Scheme, error)
	PublishRuleSet(ctx context.Context, schemeID domain.SchemeID, criteria []rules.Criterion, effectiveFrom time.Time) (*models.RuleSet, error)
	History(ctx context.Context, schemeID domain.SchemeID) ([]*models.RuleSet, error)
}

// Handler exposes catalog maintenance endpoints: scheme registration and
// rule-set publication/history. This is the collaborator-facing intake, not
// the citizen front door.
type Handler struct {
	catalog Service
	logger  *slog.Logger
}

func New(catalog Service, logger *slog.Logger) *Handler {
	return &Handler{catalog: catalog, logger: logger}
}

// Register registers the catalog routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/catalog/schemes", h.handleRegisterScheme)
	r.Get("/catalog/schemes", h.handleListSchemes)
	r.Get("/catalog/schemes/{schemeID}", h.handleGetScheme)
	r.Post("/catalog/schemes/{schemeID}/rulesets", h.handlePublishRuleSet)
	r.Get("/catalog/schemes/{schemeID}/rulesets", h.handleRuleSetHistory)
}

func (h *Handler) handleRegisterScheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterSchemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	scheme, err := h.catalog.RegisterScheme(ctx, domain.SchemeID(req.ID), req.Name, req.Benefit, req.Deadline)
	if err != nil {
		h.logger.WarnContext(ctx, "scheme registration rejected",
			"request_id", middleware.GetRequestID(ctx),
			"scheme_id", req.ID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, scheme)
}

func (h *Handler) handleListSchemes(w http.ResponseWriter, r *http.Request) {
	schemes, err := h.catalog.ListSchemes(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, schemes)
}

func (h *Handler) handleGetScheme(w http.ResponseWriter, r *http.Request) {
	scheme, err := h.catalog.GetScheme(r.Context(), domain.SchemeID(chi.URLParam(r, "schemeID")))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, scheme)
}

func (h *Handler) handlePublishRuleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schemeID := domain.SchemeID(chi.URLParam(r, "schemeID"))

	var req PublishRuleSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	var effectiveFrom time.Time
	if req.EffectiveFrom != nil {
		effectiveFrom = *req.EffectiveFrom
	}

	rs, err := h.catalog.PublishRuleSet(ctx, schemeID, req.Criteria, effectiveFrom)
	if err != nil {
		h.logger.WarnContext(ctx, "rule set publish rejected",
			"request_id", middleware.GetRequestID(ctx),
			"scheme_id", schemeID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, rs)
}

func (h *Handler) handleRuleSetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.catalog.History(r.Context(), domain.SchemeID(chi.URLParam(r, "schemeID")))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, history)
}
