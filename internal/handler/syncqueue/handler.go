package syncqueue

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vitalflow/internal/handler"
	queueService "github.com/jwalitptl/vitalflow/internal/service/syncqueue"
	"github.com/jwalitptl/vitalflow/pkg/httputil"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Handler struct {
	queue *queueService.Service
}

func NewHandler(queue *queueService.Service) *Handler {
	return &Handler{queue: queue}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/sync")
	{
		group.GET("/pending", h.Pending)
		group.POST("/:id/ack", h.Ack)
	}
}

type pendingResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

// Pending lists unsynced actions in sequence order, oldest first.
func (h *Handler) Pending(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := h.queue.Pending(ctx, handler.Limit(c, defaultLimit, maxLimit))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	total, err := h.queue.Len(ctx)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, pendingResponse{Items: items, Total: total})
}

func (h *Handler) Ack(c *gin.Context) {
	if err := h.queue.MarkSynced(c.Request.Context(), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"id": c.Param("id"), "synced": true})
}
