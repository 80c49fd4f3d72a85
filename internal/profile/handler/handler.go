package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"suvidha/internal/http/shared"
	"suvidha/internal/profile/models"
	"suvidha/pkg/domain"
	dErrors "suvidha/pkg/domain-errors"
)

// Service defines the profile operations the handler depends on.
type Service interface {
	Put(ctx context.Context, userID domain.UserID, fields domain.Fields, fullRefresh bool) (*models.Profile, error)
	Get(ctx context.Context, userID domain.UserID, version domain.ProfileVersion) (*models.Profile, error)
}

// Handler exposes profile intake endpoints for the profile collaborator.
type Handler struct {
	profiles Service
	logger   *slog.Logger
}

func New(profiles Service, logger *slog.Logger) *Handler {
	return &Handler{profiles: profiles, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Put("/profiles/{userID}", h.handlePut)
	r.Get("/profiles/{userID}", h.handleGet)
}

// PutProfileRequest carries the full field snapshot for the new version.
type PutProfileRequest struct {
	Fields domain.Fields `json:"fields"`
	// FullRefresh requests reassessment of the whole catalog instead of only
	// previously assessed schemes.
	FullRefresh bool `json:"full_refresh,omitempty"`
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	var req PutProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	p, err := h.profiles.Put(ctx, userID, req.Fields, req.FullRefresh)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	var version domain.ProfileVersion
	if raw := r.URL.Query().Get("version"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile version"))
			return
		}
		version = domain.ProfileVersion(n)
	}

	p, err := h.profiles.Get(r.Context(), userID, version)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}
