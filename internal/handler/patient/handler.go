package patient

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
	patients := r.Group("/patients")
	{
		patients.POST("", h.AdmitPatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id/vitals", h.UpdateVitals)
		patients.POST("/:id/discharge", h.DischargePatient)
	}
}

type admitRequest struct {
	model.AdmitPatientRequest
	Actor string `json:"actor" validate:"required"`
}

func (h *Handler) AdmitPatient(c *gin.Context) {
	var req admitRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	p, err := h.service.Admit(c.Request.Context(), &req.AdmitPatientRequest, req.Actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, p)
}

func (h *Handler) ListPatients(c *gin.Context) {
	var f model.PatientFilters
	if !handler.BindQuery(c, &f) {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, h.service.Patients(c.Request.Context(), f))
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.service.Patient(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) DischargePatient(c *gin.Context) {
	var req model.DischargeRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	p, err := h.service.Discharge(c.Request.Context(), c.Param("id"), req.Actor, req.Notes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) UpdateVitals(c *gin.Context) {
	var req model.UpdateVitalsRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	out, err := h.service.UpdateVitals(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, out)
}
