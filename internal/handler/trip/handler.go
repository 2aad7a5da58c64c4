package trip

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vitalflow/internal/handler"
	"github.com/jwalitptl/vitalflow/internal/model"
	tripService "github.com/jwalitptl/vitalflow/internal/service/trip"
	"github.com/jwalitptl/vitalflow/pkg/httputil"
	"github.com/jwalitptl/vitalflow/pkg/validator"
)

type Handler struct {
	service   *tripService.Service
	validator validator.Validator
}

func NewHandler(service *tripService.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	trips := r.Group("/trips")
	{
		trips.POST("", h.StartTrip)
		trips.GET("", h.ListTrips)
		trips.GET("/:id", h.GetTrip)
		trips.POST("/:id/advance", h.AdvanceTrip)
		trips.POST("/:id/complete", h.CompleteTrip)
		trips.POST("/:id/cancel", h.CancelTrip)
		trips.PUT("/:id/eta", h.UpdateETA)
		trips.POST("/:id/patient", h.AttachPatient)
	}
	r.GET("/drivers/:id/trip", h.ActiveTrip)
}

func (h *Handler) StartTrip(c *gin.Context) {
	var req model.StartTripRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Start(c.Request.Context(), req.DriverID, req.PickupLocation, req.PatientName)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, t)
}

func (h *Handler) ListTrips(c *gin.Context) {
	httputil.RespondWithSuccess(c, http.StatusOK, h.service.List(c.Request.Context()))
}

func (h *Handler) GetTrip(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) AdvanceTrip(c *gin.Context) {
	var req model.AdvanceTripRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Advance(c.Request.Context(), c.Param("id"), req.DriverID, req.State)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) CompleteTrip(c *gin.Context) {
	var req model.DriverRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Complete(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) CancelTrip(c *gin.Context) {
	var req model.CancelTripRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req.DriverID, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) UpdateETA(c *gin.Context) {
	var req model.UpdateETARequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.UpdateETA(c.Request.Context(), c.Param("id"), req.DriverID, req.ETAMinutes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) AttachPatient(c *gin.Context) {
	var req model.AttachPatientRequest
	if !handler.Bind(c, h.validator, &req) {
		return
	}

	t, err := h.service.AttachPatient(c.Request.Context(), c.Param("id"), req.DriverID, req.PatientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

// ActiveTrip returns the driver's open trip; data is null when the driver is
// free.
func (h *Handler) ActiveTrip(c *gin.Context) {
	t, err := h.service.ActiveForDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}
