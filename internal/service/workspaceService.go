package service

import (
	"context"

	"github.com/gabrie-lhilarion/spacemania/internal/database"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/sirupsen/logrus"
)

// CreateWorkspaceRequest represents the data needed to add a workspace to the catalog
type CreateWorkspaceRequest struct {
	Name             string                    `json:"name" binding:"required,min=1,max=255"`
	Type             string                    `json:"type" binding:"required,min=1,max=100"`
	DefaultCapacity  int                       `json:"default_capacity" binding:"min=0"`
	RequiresApproval bool                      `json:"requires_approval"`
	Floor            int                       `json:"floor"`
	Location         string                    `json:"location" binding:"max=255"`
	Capacity         int                       `json:"capacity" binding:"min=0,max=10000"`
	Attributes       map[string]interface{}    `json:"attributes"`
	Amenities        []entity.WorkspaceAmenity `json:"amenities"`
}

type workspaceService struct {
	workspaces database.WorkspaceRepository
}

// NewWorkspaceService creates a new instance of WorkspaceService
func NewWorkspaceService(workspaces database.WorkspaceRepository) WorkspaceService {
	return &workspaceService{workspaces: workspaces}
}

func (s *workspaceService) CreateWorkspace(ctx context.Context, req *CreateWorkspaceRequest) (*entity.Workspace, error) {
	workspace := &entity.Workspace{
		Name: req.Name,
		Type: entity.WorkspaceType{
			Name:             req.Type,
			DefaultCapacity:  req.DefaultCapacity,
			RequiresApproval: req.RequiresApproval,
		},
		Floor:      req.Floor,
		Location:   req.Location,
		Capacity:   req.Capacity,
		Attributes: req.Attributes,
		Amenities:  append([]entity.WorkspaceAmenity{}, req.Amenities...),
	}

	if err := workspace.Validate(); err != nil {
		return nil, err
	}

	if err := s.workspaces.Create(ctx, workspace); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"workspace_id": workspace.ID,
		"type":         workspace.Type.Name,
		"capacity":     workspace.Capacity,
	}).Info("Workspace created")

	return workspace, nil
}

func (s *workspaceService) GetWorkspace(ctx context.Context, id int64) (*entity.Workspace, error) {
	return s.workspaces.GetByID(ctx, id)
}

func (s *workspaceService) ListWorkspaces(ctx context.Context, filter *entity.WorkspaceFilter) ([]*entity.Workspace, error) {
	return s.workspaces.List(ctx, filter)
}

// DeactivateWorkspace hides a workspace from new bookings. Existing bookings
// are left untouched.
func (s *workspaceService) DeactivateWorkspace(ctx context.Context, id int64) error {
	if err := s.workspaces.Deactivate(ctx, id); err != nil {
		return err
	}

	logrus.WithField("workspace_id", id).Info("Workspace deactivated")
	return nil
}
