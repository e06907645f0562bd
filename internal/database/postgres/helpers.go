package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/lib/pq"
)

// PostgreSQL error codes the ledger translates into domain errors.
const (
	foreignKeyViolation pq.ErrorCode = "23503"
	checkViolation      pq.ErrorCode = "23514"
	exclusionViolation  pq.ErrorCode = "23P01"
)

func mapWriteError(message string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case exclusionViolation:
			return entity.Wrap(entity.ErrSlotTaken, err)
		case checkViolation:
			return entity.NewValidationError("constraint %s violated", pqErr.Constraint)
		case foreignKeyViolation:
			return entity.Wrap(entity.ErrWorkspaceNotFound, err)
		}
	}
	return entity.NewPersistenceError(message, err)
}

// loadAmenities fetches the amenities of several workspaces in one query.
func loadAmenities(ctx context.Context, db *sql.DB, workspaceIDs []int64) (map[int64][]entity.WorkspaceAmenity, error) {
	query := `
		SELECT wa.workspace_id, a.id, a.name, wa.quantity
		FROM workspace_amenities wa
		JOIN amenities a ON a.id = wa.amenity_id
		WHERE wa.workspace_id = ANY($1)
		ORDER BY wa.workspace_id, a.name
	`

	rows, err := db.QueryContext(ctx, query, pq.Array(workspaceIDs))
	if err != nil {
		return nil, entity.NewPersistenceError("failed to query amenities", err)
	}
	defer rows.Close()

	result := make(map[int64][]entity.WorkspaceAmenity, len(workspaceIDs))
	for rows.Next() {
		var workspaceID int64
		var amenity entity.WorkspaceAmenity
		if err := rows.Scan(&workspaceID, &amenity.ID, &amenity.Name, &amenity.Quantity); err != nil {
			return nil, entity.NewPersistenceError("failed to scan amenity", err)
		}
		result[workspaceID] = append(result[workspaceID], amenity)
	}

	if err := rows.Err(); err != nil {
		return nil, entity.NewPersistenceError("error iterating amenities", err)
	}
	return result, nil
}
