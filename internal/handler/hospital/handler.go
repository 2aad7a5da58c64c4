package hospital

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vitalflow/internal/handler"
	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/service/admission"
	staffService "github.com/jwalitptl/vitalflow/internal/service/staff"
	"github.com/jwalitptl/vitalflow/internal/service/stats"
	"github.com/jwalitptl/vitalflow/pkg/httputil"
)

type Handler struct {
	stats     *stats.Service
	admission *admission.Service
	staff     *staffService.Service
}

func NewHandler(s *stats.Service, a *admission.Service, st *staffService.Service) *Handler {
	return &Handler{stats: s, admission: a, staff: st}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	hospitals := r.Group("/hospitals")
	{
		hospitals.GET("", h.ListHospitals)
		hospitals.GET("/:id", h.GetHospital)
		hospitals.GET("/:id/stats", h.GetStats)
		hospitals.GET("/:id/patients", h.ListPatients)
		hospitals.GET("/:id/beds", h.ListBeds)
		hospitals.GET("/:id/staff", h.ListStaff)
	}
}

func (h *Handler) ListHospitals(c *gin.Context) {
	httputil.RespondWithSuccess(c, http.StatusOK, h.stats.Hospitals(c.Request.Context()))
}

func (h *Handler) GetHospital(c *gin.Context) {
	hosp, err := h.stats.HospitalByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, hosp)
}

func (h *Handler) GetStats(c *gin.Context) {
	st, err := h.stats.Hospital(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, st)
}

// known answers 404 for an unknown hospital so that an empty list always
// means an existing hospital with nothing in it.
func (h *Handler) known(c *gin.Context) bool {
	if _, err := h.stats.HospitalByID(c.Request.Context(), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return false
	}
	return true
}

func (h *Handler) ListPatients(c *gin.Context) {
	var f model.PatientFilters
	if !handler.BindQuery(c, &f) || !h.known(c) {
		return
	}
	f.HospitalID = c.Param("id")
	httputil.RespondWithSuccess(c, http.StatusOK, h.admission.Patients(c.Request.Context(), f))
}

func (h *Handler) ListBeds(c *gin.Context) {
	var f model.BedFilters
	if !handler.BindQuery(c, &f) || !h.known(c) {
		return
	}
	f.HospitalID = c.Param("id")
	httputil.RespondWithSuccess(c, http.StatusOK, h.admission.Beds(c.Request.Context(), f))
}

func (h *Handler) ListStaff(c *gin.Context) {
	var f model.StaffFilters
	if !handler.BindQuery(c, &f) || !h.known(c) {
		return
	}
	f.HospitalID = c.Param("id")
	httputil.RespondWithSuccess(c, http.StatusOK, h.staff.List(c.Request.Context(), f))
}
