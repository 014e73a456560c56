package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"lattice/internal/core"
	"lattice/internal/types"
)

// --- Mock ProjectStore ---

type mockProjectStore struct {
	projects []*types.Project
	project  *types.Project
	err      error

	created []*types.Project
	updated []projectUpdate
	deleted []string
}

type projectUpdate struct {
	ID      string
	OwnerID string
	Name    *string
	Config  json.RawMessage
}

func (m *mockProjectStore) ListByOwner(ctx context.Context, ownerID string) ([]*types.Project, error) {
	return m.projects, m.err
}

func (m *mockProjectStore) GetByID(ctx context.Context, id, ownerID string) (*types.Project, error) {
	return m.project, m.err
}

func (m *mockProjectStore) Create(ctx context.Context, project *types.Project) error {
	m.created = append(m.created, project)
	return m.err
}

func (m *mockProjectStore) Update(ctx context.Context, id, ownerID string, name *string, config json.RawMessage) error {
	m.updated = append(m.updated, projectUpdate{id, ownerID, name, config})
	return m.err
}

func (m *mockProjectStore) Delete(ctx context.Context, id, ownerID string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func newProjectsRouter(store *mockProjectStore) http.Handler {
	h := NewProjectsHandler(store, core.NewValidator(nil), nil, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			actor := types.Actor{UserID: "u1", Email: "u1@example.com", SessionID: "sess_1"}
			next.ServeHTTP(w, req.WithContext(types.WithActor(req.Context(), actor)))
		})
	})
	h.RegisterRoutes(r)
	return r
}

// --- Tests ---

func TestProjectsHandler_List(t *testing.T) {
	store := &mockProjectStore{projects: []*types.Project{
		{ID: "p2", OwnerID: "u1", Name: "newer", UpdatedAt: time.Now()},
		{ID: "p1", OwnerID: "u1", Name: "older", UpdatedAt: time.Now().Add(-time.Hour)},
	}}
	router := newProjectsRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/projects/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ProjectListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Projects) != 2 || resp.Projects[0].ID != "p2" {
		t.Errorf("unexpected projects %+v", resp.Projects)
	}
}

func TestProjectsHandler_Create(t *testing.T) {
	store := &mockProjectStore{}
	router := newProjectsRouter(store)

	body := bytes.NewBufferString(`{"name":"simulation-a"}`)
	req := httptest.NewRequest(http.MethodPost, "/projects/", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.created) != 1 {
		t.Fatal("expected one create call")
	}

	created := store.created[0]
	if created.OwnerID != "u1" || created.Name != "simulation-a" || created.ID == "" {
		t.Errorf("unexpected project %+v", created)
	}
	if string(created.Config) != `{}` {
		t.Errorf("expected empty object config default, got %s", created.Config)
	}
}

func TestProjectsHandler_Create_MissingName(t *testing.T) {
	store := &mockProjectStore{}
	router := newProjectsRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/projects/", bytes.NewBufferString(`{"name":""}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if len(store.created) != 0 {
		t.Error("store must not be called on validation failure")
	}
}

func TestProjectsHandler_Get_NotFound(t *testing.T) {
	store := &mockProjectStore{err: types.NewAppError(types.ErrCodeNotFoundProject, "project not found", nil)}
	router := newProjectsRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/projects/p404", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestProjectsHandler_Update(t *testing.T) {
	store := &mockProjectStore{project: &types.Project{ID: "p1", OwnerID: "u1", Name: "renamed"}}
	router := newProjectsRouter(store)

	body := bytes.NewBufferString(`{"name":"renamed"}`)
	req := httptest.NewRequest(http.MethodPatch, "/projects/p1", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.updated) != 1 {
		t.Fatal("expected one update call")
	}
	if store.updated[0].ID != "p1" || store.updated[0].OwnerID != "u1" {
		t.Errorf("unexpected update %+v", store.updated[0])
	}
	if store.updated[0].Name == nil || *store.updated[0].Name != "renamed" {
		t.Error("expected name update")
	}
}

func TestProjectsHandler_Update_EmptyBody(t *testing.T) {
	store := &mockProjectStore{}
	router := newProjectsRouter(store)

	req := httptest.NewRequest(http.MethodPatch, "/projects/p1", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for no-op update, got %d", rr.Code)
	}
}

func TestProjectsHandler_Delete(t *testing.T) {
	store := &mockProjectStore{}
	router := newProjectsRouter(store)

	req := httptest.NewRequest(http.MethodDelete, "/projects/p1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "p1" {
		t.Errorf("unexpected deletes %v", store.deleted)
	}
}
