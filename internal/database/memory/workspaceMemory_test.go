package memory

import (
	"context"
	"testing"

	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewWorkspaceRepository(fixedClock)

	desk := &entity.Workspace{Name: "Desk 12", Type: entity.WorkspaceType{Name: "desk", DefaultCapacity: 1}, Floor: 1, Capacity: 1}
	room := &entity.Workspace{Name: "Orion", Type: entity.WorkspaceType{Name: "meeting_room", RequiresApproval: true}, Floor: 3, Capacity: 10}
	booth := &entity.Workspace{Name: "Booth", Type: entity.WorkspaceType{Name: "desk", RequiresApproval: true}, Floor: 1, Capacity: 1}

	for _, w := range []*entity.Workspace{desk, room, booth} {
		require.NoError(t, catalog.Create(ctx, w))
	}
	assert.Equal(t, desk.Type.ID, booth.Type.ID)
	assert.False(t, booth.Type.RequiresApproval, "existing type keeps its rules")

	got, err := catalog.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Orion", got.Name)
	assert.True(t, got.IsActive)

	got.Name = "mutated"
	again, err := catalog.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Orion", again.Name)

	all, err := catalog.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Booth", all[0].Name)
	assert.Equal(t, "Orion", all[2].Name)

	require.NoError(t, catalog.Deactivate(ctx, desk.ID))
	active, err := catalog.List(ctx, &entity.WorkspaceFilter{TypeName: "DESK"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Booth", active[0].Name)

	withInactive, err := catalog.List(ctx, &entity.WorkspaceFilter{IncludeInactive: true, MinCapacity: 1})
	require.NoError(t, err)
	assert.Len(t, withInactive, 3)

	assert.ErrorIs(t, catalog.Deactivate(ctx, 999), entity.ErrWorkspaceNotFound)
	_, err = catalog.GetByID(ctx, 999)
	assert.ErrorIs(t, err, entity.ErrWorkspaceNotFound)
}
