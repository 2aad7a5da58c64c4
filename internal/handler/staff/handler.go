package staff

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vitalflow/internal/handler"
	"github.com/jwalitptl/vitalflow/internal/model"
	staffService "github.com/jwalitptl/vitalflow/internal/service/staff"
	"github.com/jwalitptl/vitalflow/pkg/httputil"
)

type Handler struct {
	service *staffService.Service
}

func NewHandler(service *staffService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	staff := r.Group("/staff")
	{
		staff.GET("", h.ListStaff)
		staff.GET("/available", h.AvailableStaff)
		staff.GET("/:id", h.GetStaff)
		staff.POST("/:id/punch-in", h.PunchIn)
		staff.POST("/:id/punch-out", h.PunchOut)
		staff.GET("/:id/fatigue", h.Fatigue)
	}
}

type availableQuery struct {
	Role            model.StaffRole `form:"role"`
	ExcludeFatigued bool            `form:"exclude_fatigued"`
}

func (h *Handler) ListStaff(c *gin.Context) {
	var f model.StaffFilters
	if !handler.BindQuery(c, &f) {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, h.service.List(c.Request.Context(), f))
}

func (h *Handler) AvailableStaff(c *gin.Context) {
	var q availableQuery
	if !handler.BindQuery(c, &q) {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, h.service.Available(c.Request.Context(), q.Role, q.ExcludeFatigued))
}

func (h *Handler) GetStaff(c *gin.Context) {
	m, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, m)
}

func (h *Handler) PunchIn(c *gin.Context) {
	m, err := h.service.PunchIn(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, m)
}

func (h *Handler) PunchOut(c *gin.Context) {
	m, err := h.service.PunchOut(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, m)
}

func (h *Handler) Fatigue(c *gin.Context) {
	st, err := h.service.FatigueCheck(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, st)
}
