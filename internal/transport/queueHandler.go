package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gabrie-lhilarion/spacemania/pkg/queue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QueueHandler lets admins inspect and replay booking events that exhausted
// their retries.
type QueueHandler struct {
	dlq queue.DLQHandler
}

func NewQueueHandler(dlq queue.DLQHandler) *QueueHandler {
	return &QueueHandler{dlq: dlq}
}

func (h *QueueHandler) ListFailed(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	tasks, err := h.dlq.GetFailedTasks(c.Request.Context(), limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to read dead letter queue")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    tasks,
		Meta:    gin.H{"limit": limit, "total": len(tasks)},
	})
}

func (h *QueueHandler) Requeue(c *gin.Context) {
	taskID := c.Param("id")

	if err := h.dlq.RequeueFailedTask(c.Request.Context(), taskID); err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Error: "task not found"})
			return
		}
		logrus.WithError(err).WithField("task_id", taskID).Error("Failed to requeue task")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Task requeued"})
}

func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.dlq.GetDLQStats(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to read dead letter queue stats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: stats})
}
