package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabrie-lhilarion/spacemania/internal/database"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
)

const workspaceSelect = `
	SELECT
		w.id, w.name, w.floor, w.location, w.capacity, w.is_active, w.attributes,
		w.created_at, w.updated_at,
		t.id, t.name, t.default_capacity, t.requires_approval
	FROM workspaces w
	JOIN workspace_types t ON t.id = w.type_id
`

type workspaceRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewWorkspaceRepository(db *sql.DB, clock func() time.Time) database.WorkspaceRepository {
	if clock == nil {
		clock = time.Now
	}
	return &workspaceRepository{db: db, now: clock}
}

// Create stores a workspace, its type and amenities in one transaction.
// An existing type keeps its stored capacity default and approval rule.
func (r *workspaceRepository) Create(ctx context.Context, workspace *entity.Workspace) error {
	attributes, err := json.Marshal(workspace.Attributes)
	if err != nil {
		return entity.NewValidationError("invalid workspace attributes: %v", err)
	}
	if workspace.Attributes == nil {
		attributes = []byte("{}")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.NewPersistenceError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO workspace_types (name, default_capacity, requires_approval)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, default_capacity, requires_approval
	`
	err = tx.QueryRowContext(ctx, query,
		workspace.Type.Name,
		workspace.Type.DefaultCapacity,
		workspace.Type.RequiresApproval,
	).Scan(&workspace.Type.ID, &workspace.Type.DefaultCapacity, &workspace.Type.RequiresApproval)
	if err != nil {
		return mapWriteError("failed to upsert workspace type", err)
	}

	now := r.now()
	workspace.IsActive = true
	workspace.CreatedAt = now
	workspace.UpdatedAt = now

	query = `
		INSERT INTO workspaces (name, type_id, floor, location, capacity, is_active, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		workspace.Name,
		workspace.Type.ID,
		workspace.Floor,
		workspace.Location,
		workspace.Capacity,
		workspace.IsActive,
		string(attributes),
		workspace.CreatedAt,
		workspace.UpdatedAt,
	).Scan(&workspace.ID)
	if err != nil {
		return mapWriteError("failed to create workspace", err)
	}

	for i := range workspace.Amenities {
		amenity := &workspace.Amenities[i]

		query = `
			INSERT INTO amenities (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, query, amenity.Name).Scan(&amenity.ID); err != nil {
			return mapWriteError("failed to upsert amenity", err)
		}

		query = `INSERT INTO workspace_amenities (workspace_id, amenity_id, quantity) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, query, workspace.ID, amenity.ID, amenity.Quantity); err != nil {
			return mapWriteError("failed to attach amenity", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return entity.NewPersistenceError("failed to commit transaction", err)
	}
	return nil
}

func (r *workspaceRepository) GetByID(ctx context.Context, id int64) (*entity.Workspace, error) {
	workspace, err := scanWorkspace(r.db.QueryRowContext(ctx, workspaceSelect+` WHERE w.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, entity.NewPersistenceError("failed to get workspace", err)
	}

	amenities, err := loadAmenities(ctx, r.db, []int64{workspace.ID})
	if err != nil {
		return nil, err
	}
	workspace.Amenities = orEmpty(amenities[workspace.ID])

	return workspace, nil
}

func (r *workspaceRepository) List(ctx context.Context, filter *entity.WorkspaceFilter) ([]*entity.Workspace, error) {
	if filter == nil {
		filter = &entity.WorkspaceFilter{}
	}

	var conditions []string
	var args []interface{}
	addCondition := func(format string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if !filter.IncludeInactive {
		conditions = append(conditions, "w.is_active")
	}
	if filter.TypeName != "" {
		addCondition("LOWER(t.name) = LOWER($%d)", filter.TypeName)
	}
	if filter.Floor != nil {
		addCondition("w.floor = $%d", *filter.Floor)
	}
	if filter.MinCapacity > 0 {
		addCondition("w.capacity >= $%d", filter.MinCapacity)
	}

	query := workspaceSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY w.floor, w.name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, entity.NewPersistenceError("failed to list workspaces", err)
	}
	defer rows.Close()

	workspaces := make([]*entity.Workspace, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		workspace, err := scanWorkspace(rows)
		if err != nil {
			return nil, entity.NewPersistenceError("failed to scan workspace", err)
		}
		workspaces = append(workspaces, workspace)
		ids = append(ids, workspace.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, entity.NewPersistenceError("error iterating workspaces", err)
	}

	if len(ids) == 0 {
		return workspaces, nil
	}

	amenities, err := loadAmenities(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, workspace := range workspaces {
		workspace.Amenities = orEmpty(amenities[workspace.ID])
	}

	return workspaces, nil
}

// Deactivate hides a workspace from booking. Rows are never hard deleted so
// historical bookings keep their catalog data.
func (r *workspaceRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE workspaces SET is_active = FALSE, updated_at = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, r.now(), id)
	if err != nil {
		return entity.NewPersistenceError("failed to deactivate workspace", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return entity.NewPersistenceError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return entity.ErrWorkspaceNotFound
	}

	return nil
}

func scanWorkspace(row rowScanner) (*entity.Workspace, error) {
	var workspace entity.Workspace
	var attributes []byte

	err := row.Scan(
		&workspace.ID,
		&workspace.Name,
		&workspace.Floor,
		&workspace.Location,
		&workspace.Capacity,
		&workspace.IsActive,
		&attributes,
		&workspace.CreatedAt,
		&workspace.UpdatedAt,
		&workspace.Type.ID,
		&workspace.Type.Name,
		&workspace.Type.DefaultCapacity,
		&workspace.Type.RequiresApproval,
	)
	if err != nil {
		return nil, err
	}

	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &workspace.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return &workspace, nil
}

func orEmpty(amenities []entity.WorkspaceAmenity) []entity.WorkspaceAmenity {
	if amenities == nil {
		return []entity.WorkspaceAmenity{}
	}
	return amenities
}
