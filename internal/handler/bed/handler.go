package bed

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vitalflow/internal/handler"
	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/service/admission"
	"github.com/jwalitptl/vitalflow/pkg/httputil"
	"github.com/jwalitptl/vitalflow/pkg/validator"
)

type Handler struct {
	service   *admission.Service
	validator validator.Validator
}

func NewHandler(service *admission.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	beds := r.Group("/beds")
	{
		beds.GET("", h.ListBeds)
		beds.GET("/:id", h.GetBed)
		beds.POST("/:id/maintenance", h.StartMaintenance)
		beds.DELETE("/:id/maintenance", h.EndMaintenance)
	}
}

func (h *Handler) ListBeds(c *gin.Context) {
	var f model.BedFilters
	if !handler.BindQuery(c, &f) {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, h.service.Beds(c.Request.Context(), f))
}

func (h *Handler) GetBed(c *gin.Context) {
	b, err := h.service.Bed(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

func (h *Handler) StartMaintenance(c *gin.Context) {
	var req model.MaintenanceRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	b, err := h.service.SetMaintenance(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

// EndMaintenance takes the actor from the query string since DELETE bodies
// are often stripped by proxies.
func (h *Handler) EndMaintenance(c *gin.Context) {
	req := model.MaintenanceRequest{Actor: c.Query("actor")}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	b, err := h.service.ClearMaintenance(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}
