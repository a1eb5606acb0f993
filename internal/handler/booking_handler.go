package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/zenbook/service-booking/internal/application"
	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/platform/auth"
	"github.com/zenbook/service-booking/internal/platform/middleware"
	"github.com/zenbook/service-booking/internal/platform/response"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service    *application.BookingService
	therapists *application.TherapistService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService, therapists *application.TherapistService) *BookingHandler {
	return &BookingHandler{service: service, therapists: therapists}
}

// RegisterRoutes registers the shared, customer and therapist booking routes.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
	}

	customer := r.Group("/api/v1/customer")
	customer.Use(authMW, middleware.RequireRole(identity.RoleCustomer.String()))
	{
		customer.GET("/dashboard", h.CustomerDashboard)
		customer.GET("/available-therapists", h.AvailableTherapists)
		customer.GET("/bookings", h.ListBookings)
		customer.POST("/bookings", h.CreateBooking)
		customer.GET("/bookings/:id", h.GetBooking)
		customer.PUT("/bookings/:id", h.UpdateBooking)
		customer.DELETE("/bookings/:id", h.DeleteBooking)
	}

	therapist := r.Group("/api/v1/therapist")
	therapist.Use(authMW, middleware.RequireRole(identity.RoleTherapist.String()))
	{
		therapist.GET("/dashboard", h.TherapistDashboard)
		therapist.GET("/bookings", h.TherapistBookings)
		therapist.GET("/customers", h.TherapistCustomers)
		therapist.POST("/bookings/:id/accept", h.AcceptBooking)
		therapist.POST("/bookings/:id/decline", h.DeclineBooking)
		therapist.POST("/bookings/:id/status", h.UpdateStatus)
		therapist.POST("/availability/toggle", h.ToggleAvailability)
	}
}

// CustomerDashboard handles GET /api/v1/customer/dashboard.
func (h *BookingHandler) CustomerDashboard(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// AvailableTherapists handles GET /api/v1/customer/available-therapists.
func (h *BookingHandler) AvailableTherapists(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	therapists, err := h.therapists.ListAvailable(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, therapists)
}

// CreateBooking handles POST /api/v1/customer/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings and GET /api/v1/customer/bookings.
// The result is scoped to the caller.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	result, err := h.service.ListBookings(c.Request.Context(), p, c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	paginated(c, result)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateBooking handles PUT /api/v1/customer/bookings/:id.
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}

	var req application.UpdateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.UpdateBooking(c.Request.Context(), p, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteBooking handles DELETE /api/v1/customer/bookings/:id.
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}

	if err := h.service.DeleteBooking(c.Request.Context(), p, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Booking deleted successfully")
}

// TherapistDashboard handles GET /api/v1/therapist/dashboard.
func (h *BookingHandler) TherapistDashboard(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	dash, err := h.therapists.Dashboard(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dash)
}

// TherapistBookings handles GET /api/v1/therapist/bookings.
func (h *BookingHandler) TherapistBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	result, err := h.therapists.Bookings(c.Request.Context(), p, c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	paginated(c, result)
}

// TherapistCustomers handles GET /api/v1/therapist/customers.
func (h *BookingHandler) TherapistCustomers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	customers, err := h.service.TherapistCustomers(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, customers)
}

// AcceptBooking handles POST /api/v1/therapist/bookings/:id/accept.
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}

	result, err := h.service.Accept(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeclineBooking handles POST /api/v1/therapist/bookings/:id/decline.
func (h *BookingHandler) DeclineBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}

	result, err := h.service.Decline(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateStatus handles POST /api/v1/therapist/bookings/:id/status.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return
	}

	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.UpdateStatus(c.Request.Context(), p, id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ToggleAvailability handles POST /api/v1/therapist/availability/toggle.
func (h *BookingHandler) ToggleAvailability(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	result, err := h.therapists.ToggleAvailability(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
