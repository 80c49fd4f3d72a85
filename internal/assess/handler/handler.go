// Package handler is the citizen-facing front door: on-demand assessment,
// assessment history, and the privacy erasure endpoint.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"suvidha/internal/assess/service"
	"suvidha/internal/http/shared"
	"suvidha/internal/ledger"
	"suvidha/internal/platform/middleware"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
	pstrings "suvidha/pkg/platform/strings"
)

// Service defines the assessment operations the handler depends on.
type Service interface {
	Assess(ctx context.Context, userID domain.UserID, profileVersion domain.ProfileVersion, schemeIDs []domain.SchemeID) (*service.Result, error)
	History(ctx context.Context, userID domain.UserID, schemeID domain.SchemeID) ([]ledger.Entry, error)
	Erase(ctx context.Context, userID domain.UserID) error
	Totals(ctx context.Context) (ledger.Totals, error)
}

type Handler struct {
	assessor Service
	logger   *slog.Logger
}

func New(assessor Service, logger *slog.Logger) *Handler {
	return &Handler{assessor: assessor, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/assess", h.handleAssess)
	r.Get("/assess/history", h.handleHistory)
	r.Get("/assess/totals", h.handleTotals)
	r.Post("/erase", h.handleErase)
}

// AssessRequest asks for an assessment. A zero profile version means the
// latest snapshot; an empty scheme list means the full catalog.
type AssessRequest struct {
	UserID         string   `json:"user_id"`
	ProfileVersion int64    `json:"profile_version,omitempty"`
	SchemeIDs      []string `json:"scheme_ids,omitempty"`
}

func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	userID, err := domain.ParseUserID(req.UserID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	if req.ProfileVersion < 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile version"))
		return
	}
	requested := pstrings.DedupeAndTrim(req.SchemeIDs)
	schemeIDs := make([]domain.SchemeID, 0, len(requested))
	for _, raw := range requested {
		id := domain.SchemeID(raw)
		if err := id.Validate(); err != nil {
			shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid scheme id"))
			return
		}
		schemeIDs = append(schemeIDs, id)
	}

	result, err := h.assessor.Assess(ctx, userID, domain.ProfileVersion(req.ProfileVersion), schemeIDs)
	if err != nil {
		h.logger.WarnContext(ctx, "assessment rejected",
			"request_id", middleware.GetRequestID(ctx),
			"user_id", req.UserID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.ParseUserID(r.URL.Query().Get("user_id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	schemeID := domain.SchemeID(r.URL.Query().Get("scheme_id"))

	entries, err := h.assessor.History(r.Context(), userID, schemeID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.assessor.Totals(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, totals)
}

// EraseRequest names the user whose data must be removed.
type EraseRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) handleErase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	userID, err := domain.ParseUserID(req.UserID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	if err := h.assessor.Erase(ctx, userID); err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "erasure completed",
		"request_id", middleware.GetRequestID(ctx),
		"user_id", req.UserID,
	)
	w.WriteHeader(http.StatusNoContent)
}
