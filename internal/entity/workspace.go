package entity

import (
	"strings"
	"time"
)

type WorkspaceType struct {
	ID               int64  `json:"id" db:"id"`
	Name             string `json:"name" db:"name"`
	DefaultCapacity  int    `json:"default_capacity" db:"default_capacity"`
	RequiresApproval bool   `json:"requires_approval" db:"requires_approval"`
}

type WorkspaceAmenity struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Quantity int    `json:"quantity" db:"quantity"`
}

type Workspace struct {
	ID         int64                  `json:"id" db:"id"`
	Name       string                 `json:"name" db:"name"`
	Type       WorkspaceType          `json:"type"`
	Floor      int                    `json:"floor" db:"floor"`
	Location   string                 `json:"location" db:"location"`
	Capacity   int                    `json:"capacity" db:"capacity"`
	IsActive   bool                   `json:"is_active" db:"is_active"`
	Attributes map[string]interface{} `json:"attributes,omitempty" db:"attributes"`
	Amenities  []WorkspaceAmenity     `json:"amenities"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at" db:"updated_at"`
}

// Validate checks an admin-supplied definition before it reaches storage.
// A zero capacity falls back to the type default.
func (w *Workspace) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return NewValidationError("workspace name is required")
	}
	if w.Capacity == 0 {
		w.Capacity = w.Type.DefaultCapacity
	}
	if w.Capacity < 1 {
		return NewValidationError("workspace capacity must be positive")
	}
	for _, a := range w.Amenities {
		if a.Quantity < 1 {
			return NewValidationError("amenity %q quantity must be positive", a.Name)
		}
	}
	return nil
}

// WorkspaceFilter narrows catalog browsing.
type WorkspaceFilter struct {
	TypeName        string
	Floor           *int
	MinCapacity     int
	IncludeInactive bool
}

// Matches applies the filter to a single workspace.
func (f *WorkspaceFilter) Matches(w *Workspace) bool {
	if !f.IncludeInactive && !w.IsActive {
		return false
	}
	if f.TypeName != "" && !strings.EqualFold(f.TypeName, w.Type.Name) {
		return false
	}
	if f.Floor != nil && *f.Floor != w.Floor {
		return false
	}
	return w.Capacity >= f.MinCapacity
}
