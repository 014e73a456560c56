package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"lattice/internal/types"
)

// ProjectRepository provides data access for the projects table.
// All queries are scoped to the owning user; a project is never visible
// outside its owner.
type ProjectRepository struct {
	db DBTX
}

// NewProjectRepository creates a new ProjectRepository backed by the given
// database connection (pool or transaction).
func NewProjectRepository(db DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `p.id, p.owner_id, p.name, p.config, p.created_at, p.updated_at`

func scanProject(row pgx.Row) (*types.Project, error) {
	var p types.Project
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Config,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByOwner returns the owner's projects, newest-updated first.
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*types.Project, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+projectColumns+`
		 FROM projects p
		 WHERE p.owner_id = $1
		 ORDER BY p.updated_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list projects", err)
	}
	defer rows.Close()

	projects := make([]*types.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read projects", err)
	}
	return projects, nil
}

// GetByID retrieves a project by ID, scoped to the owner.
// Returns ErrCodeNotFoundProject if no such project exists for this owner.
func (r *ProjectRepository) GetByID(ctx context.Context, id, ownerID string) (*types.Project, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+projectColumns+`
		 FROM projects p
		 WHERE p.id = $1 AND p.owner_id = $2`,
		id,
		ownerID,
	)

	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundProject, "project not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load project", err)
	}
	return project, nil
}

// Create inserts a new project row.
func (r *ProjectRepository) Create(ctx context.Context, project *types.Project) error {
	config := project.Config
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO projects (id, owner_id, name, config, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		project.ID,
		project.OwnerID,
		project.Name,
		config,
		project.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create project", err)
	}
	return nil
}

// Update renames a project and/or replaces its config, scoped to the owner.
// Nil name/config arguments leave the corresponding column untouched.
// Returns ErrCodeNotFoundProject when the project does not exist.
func (r *ProjectRepository) Update(ctx context.Context, id, ownerID string, name *string, config json.RawMessage) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE projects
		 SET name = COALESCE($1, name),
		     config = COALESCE($2, config),
		     updated_at = NOW()
		 WHERE id = $3 AND owner_id = $4`,
		name,
		config,
		id,
		ownerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update project", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundProject, "project not found", nil)
	}
	return nil
}

// Delete removes a project, scoped to the owner.
// Returns ErrCodeNotFoundProject when the project does not exist.
func (r *ProjectRepository) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM projects WHERE id = $1 AND owner_id = $2`,
		id,
		ownerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete project", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundProject, "project not found", nil)
	}
	return nil
}
