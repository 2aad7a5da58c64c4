package decision

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vitalflow/internal/handler"
	"github.com/jwalitptl/vitalflow/internal/model"
	decisionService "github.com/jwalitptl/vitalflow/internal/service/decision"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
	"github.com/jwalitptl/vitalflow/pkg/httputil"
	"github.com/jwalitptl/vitalflow/pkg/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service   *decisionService.Service
	validator validator.Validator
}

func NewHandler(service *decisionService.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	decisions := r.Group("/decisions")
	{
		decisions.GET("", h.ListDecisions)
		decisions.GET("/export", h.ExportDecisions)
		decisions.GET("/:id", h.GetDecision)
		decisions.POST("/:id/override", h.OverrideDecision)
	}
}

func (h *Handler) ListDecisions(c *gin.Context) {
	var f model.ActionFilters
	if !handler.BindQuery(c, &f) {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, h.service.Query(f))
}

func (h *Handler) GetDecision(c *gin.Context) {
	a, err := h.service.Get(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, a)
}

func (h *Handler) OverrideDecision(c *gin.Context) {
	var req model.OverrideRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	a, err := h.service.Override(c.Request.Context(), c.Param("id"), req.Actor, req.NewOutcome, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, a)
}

// ExportDecisions streams the filtered log as an xlsx workbook.
func (h *Handler) ExportDecisions(c *gin.Context) {
	var f model.ActionFilters
	if !handler.BindQuery(c, &f) {
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportXLSX(&buf, f); err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	filename := fmt.Sprintf("decision-log-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
