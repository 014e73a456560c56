package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lattice/internal/core"
	"lattice/internal/types"
)

// ProjectStore is the data access surface for the projects handler.
type ProjectStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*types.Project, error)
	GetByID(ctx context.Context, id, ownerID string) (*types.Project, error)
	Create(ctx context.Context, project *types.Project) error
	Update(ctx context.Context, id, ownerID string, name *string, config json.RawMessage) error
	Delete(ctx context.Context, id, ownerID string) error
}

// CreateProjectRequest is the request body for POST /v1/projects.
type CreateProjectRequest struct {
	Name   string          `json:"name" validate:"required,min=1,max=120"`
	Config json.RawMessage `json:"config,omitempty"`
}

// UpdateProjectRequest is the request body for PATCH /v1/projects/{id}.
// Omitted fields are left unchanged.
type UpdateProjectRequest struct {
	Name   *string         `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Config json.RawMessage `json:"config,omitempty"`
}

// ProjectListResponse is the response for GET /v1/projects.
type ProjectListResponse struct {
	Projects []*types.Project `json:"projects"`
}

// ProjectsHandler implements owner-scoped project CRUD.
type ProjectsHandler struct {
	store     ProjectStore
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewProjectsHandler creates a new ProjectsHandler.
func NewProjectsHandler(store ProjectStore, v *core.Validator, clock types.Clock, l *slog.Logger) *ProjectsHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if l == nil {
		l = slog.Default()
	}
	return &ProjectsHandler{
		store:     store,
		validator: v,
		clock:     clock,
		logger:    l,
	}
}

// RegisterRoutes mounts the project endpoints. The parent router applies
// auth middleware.
func (h *ProjectsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{projectID}", h.Get)
		r.Patch("/{projectID}", h.Update)
		r.Delete("/{projectID}", h.Delete)
	})
}

// List handles GET /v1/projects, newest-updated first.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	projects, err := h.store.ListByOwner(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, ProjectListResponse{Projects: projects})
}

// Create handles POST /v1/projects.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	var req CreateProjectRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	project := &types.Project{
		ID:        uuid.NewString(),
		OwnerID:   actor.UserID,
		Name:      req.Name,
		Config:    req.Config,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(project.Config) == 0 {
		project.Config = json.RawMessage(`{}`)
	}

	if err := h.store.Create(r.Context(), project); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "project created",
		"project_id", project.ID,
		"owner_id", actor.UserID,
	)

	core.JSON(w, r, http.StatusCreated, project)
}

// Get handles GET /v1/projects/{projectID}.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	project, err := h.store.GetByID(r.Context(), chi.URLParam(r, "projectID"), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, project)
}

// Update handles PATCH /v1/projects/{projectID}.
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	var req UpdateProjectRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Name == nil && len(req.Config) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"at least one of name or config must be provided",
			nil,
		))
		return
	}

	projectID := chi.URLParam(r, "projectID")
	if err := h.store.Update(r.Context(), projectID, actor.UserID, req.Name, req.Config); err != nil {
		core.Error(w, r, err)
		return
	}

	project, err := h.store.GetByID(r.Context(), projectID, actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, project)
}

// Delete handles DELETE /v1/projects/{projectID}.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	if err := h.store.Delete(r.Context(), chi.URLParam(r, "projectID"), actor.UserID); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, map[string]bool{"deleted": true})
}
