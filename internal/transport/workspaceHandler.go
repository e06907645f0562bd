package transport

import (
	"net/http"
	"strconv"

	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/gabrie-lhilarion/spacemania/internal/service"
	"github.com/gin-gonic/gin"
)

type WorkspaceHandler struct {
	workspaceService service.WorkspaceService
}

func NewWorkspaceHandler(workspaceService service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	filter := &entity.WorkspaceFilter{TypeName: c.Query("type")}

	if raw := c.Query("floor"); raw != "" {
		floor, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "floor must be a number")
			return
		}
		filter.Floor = &floor
	}
	if raw := c.Query("min_capacity"); raw != "" {
		minCapacity, err := strconv.Atoi(raw)
		if err != nil || minCapacity < 0 {
			badRequest(c, "min_capacity must be a non-negative number")
			return
		}
		filter.MinCapacity = minCapacity
	}
	if raw := c.Query("include_inactive"); raw != "" {
		includeInactive, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "include_inactive must be true or false")
			return
		}
		filter.IncludeInactive = includeInactive
	}

	workspaces, err := h.workspaceService.ListWorkspaces(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    workspaces,
		Meta:    gin.H{"total": len(workspaces)},
	})
}

func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	workspace, err := h.workspaceService.GetWorkspace(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: workspace})
}

func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	var req service.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindingMessage(err, &req))
		return
	}

	workspace, err := h.workspaceService.CreateWorkspace(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "Workspace created successfully",
		Data:    workspace,
	})
}

// DeactivateWorkspace is a soft delete. Bookings already made stay valid.
func (h *WorkspaceHandler) DeactivateWorkspace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.workspaceService.DeactivateWorkspace(c.Request.Context(), id); err != nil {
		respondError(c, err, http.StatusConflict)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Workspace deactivated"})
}
