package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabrie-lhilarion/spacemania/internal/database"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
)

type workspaceRepository struct {
	mu         sync.RWMutex
	nextID     int64
	nextTypeID int64
	workspaces map[int64]*entity.Workspace
	types      map[string]entity.WorkspaceType
	amenityIDs map[string]int64
	now        func() time.Time
}

// NewWorkspaceRepository returns a process-local catalog.
func NewWorkspaceRepository(clock func() time.Time) database.WorkspaceRepository {
	if clock == nil {
		clock = time.Now
	}
	return &workspaceRepository{
		workspaces: make(map[int64]*entity.Workspace),
		types:      make(map[string]entity.WorkspaceType),
		amenityIDs: make(map[string]int64),
		now:        clock,
	}
}

func (r *workspaceRepository) Create(_ context.Context, workspace *entity.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(workspace.Type.Name)
	t, ok := r.types[key]
	if !ok {
		r.nextTypeID++
		t = workspace.Type
		t.ID = r.nextTypeID
		r.types[key] = t
	}
	workspace.Type = t

	for i := range workspace.Amenities {
		name := strings.ToLower(workspace.Amenities[i].Name)
		id, ok := r.amenityIDs[name]
		if !ok {
			id = int64(len(r.amenityIDs) + 1)
			r.amenityIDs[name] = id
		}
		workspace.Amenities[i].ID = id
	}

	r.nextID++
	now := r.now()
	workspace.ID = r.nextID
	workspace.IsActive = true
	workspace.CreatedAt = now
	workspace.UpdatedAt = now

	r.workspaces[workspace.ID] = cloneWorkspace(workspace)
	return nil
}

func (r *workspaceRepository) GetByID(_ context.Context, id int64) (*entity.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workspace, ok := r.workspaces[id]
	if !ok {
		return nil, entity.ErrWorkspaceNotFound
	}
	return cloneWorkspace(workspace), nil
}

func (r *workspaceRepository) List(_ context.Context, filter *entity.WorkspaceFilter) ([]*entity.Workspace, error) {
	if filter == nil {
		filter = &entity.WorkspaceFilter{}
	}

	r.mu.RLock()
	result := make([]*entity.Workspace, 0, len(r.workspaces))
	for _, workspace := range r.workspaces {
		if filter.Matches(workspace) {
			result = append(result, cloneWorkspace(workspace))
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Floor != result[j].Floor {
			return result[i].Floor < result[j].Floor
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r *workspaceRepository) Deactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	workspace, ok := r.workspaces[id]
	if !ok {
		return entity.ErrWorkspaceNotFound
	}
	workspace.IsActive = false
	workspace.UpdatedAt = r.now()
	return nil
}

func cloneWorkspace(w *entity.Workspace) *entity.Workspace {
	c := *w
	c.Amenities = append([]entity.WorkspaceAmenity{}, w.Amenities...)
	if w.Attributes != nil {
		c.Attributes = make(map[string]interface{}, len(w.Attributes))
		for k, v := range w.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}
