package transfer

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vitalflow/internal/handler"
	"github.com/jwalitptl/vitalflow/internal/model"
	transferService "github.com/jwalitptl/vitalflow/internal/service/transfer"
	"github.com/jwalitptl/vitalflow/pkg/httputil"
	"github.com/jwalitptl/vitalflow/pkg/validator"
)

type Handler struct {
	service   *transferService.Service
	validator validator.Validator
}

func NewHandler(service *transferService.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	transfers := r.Group("/transfers")
	{
		transfers.POST("", h.RequestTransfer)
		transfers.POST("/propose", h.ProposeTransfer)
		transfers.POST("/swap", h.ProposeSwap)
		transfers.GET("", h.ListTransfers)
		transfers.GET("/:id", h.GetTransfer)
		transfers.POST("/:id/approve", h.ApproveTransfer)
		transfers.POST("/:id/decline", h.DeclineTransfer)
		transfers.POST("/:id/start", h.StartTransfer)
		transfers.POST("/:id/complete", h.CompleteTransfer)
		transfers.POST("/:id/annotations", h.AnnotateTransfer)
	}
}

func (h *Handler) RequestTransfer(c *gin.Context) {
	var req model.CreateTransferRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Request(c.Request.Context(), req.PatientID, req.DestinationBedID, req.Actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, t)
}

func (h *Handler) ProposeTransfer(c *gin.Context) {
	var req model.ProposeTransferRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Propose(c.Request.Context(), req.PatientID, req.Actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, t)
}

func (h *Handler) ProposeSwap(c *gin.Context) {
	var req model.ProposeTransferRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	plan, err := h.service.ProposeSwap(c.Request.Context(), req.PatientID, req.Actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, plan)
}

func (h *Handler) ListTransfers(c *gin.Context) {
	var f model.TransferFilters
	if !handler.BindQuery(c, &f) {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, h.service.List(c.Request.Context(), f))
}

func (h *Handler) GetTransfer(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) ApproveTransfer(c *gin.Context) {
	var req model.DecisionRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Approve(c.Request.Context(), c.Param("id"), req.Actor, req.Rationale)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) DeclineTransfer(c *gin.Context) {
	var req model.DeclineRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Decline(c.Request.Context(), c.Param("id"), req.Actor, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) StartTransfer(c *gin.Context) {
	var req model.StaffActionRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Start(c.Request.Context(), c.Param("id"), req.StaffID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) CompleteTransfer(c *gin.Context) {
	var req model.StaffActionRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Complete(c.Request.Context(), c.Param("id"), req.StaffID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) AnnotateTransfer(c *gin.Context) {
	var req model.AnnotateRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Annotate(c.Request.Context(), c.Param("id"), req.Actor, req.Note)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}
