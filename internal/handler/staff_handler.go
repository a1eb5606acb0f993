package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zenbook/service-booking/internal/application"
	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/platform/apperror"
	"github.com/zenbook/service-booking/internal/platform/auth"
	"github.com/zenbook/service-booking/internal/platform/middleware"
	"github.com/zenbook/service-booking/internal/platform/response"
)

// accountRoutes binds one administrated account category to its service methods.
type accountRoutes struct {
	entity string
	list   func(ctx context.Context, p identity.Principal, page, limit int) (*apperror.PaginatedResult[application.UserDTO], error)
	get    func(ctx context.Context, p identity.Principal, id uuid.UUID) (*application.UserDTO, error)
	create func(ctx context.Context, p identity.Principal, req application.CreateAccountRequest) (*application.UserDTO, error)
	update func(ctx context.Context, p identity.Principal, id uuid.UUID, req application.UpdateAccountRequest) (*application.UserDTO, error)
	remove func(ctx context.Context, p identity.Principal, id uuid.UUID) error
}

// StaffHandler handles the staff and super admin back office.
type StaffHandler struct {
	service *application.AdminService
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(service *application.AdminService) *StaffHandler {
	return &StaffHandler{service: service}
}

// RegisterRoutes registers staff and super admin routes.
func (h *StaffHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	staff := r.Group("/api/v1/staff")
	staff.Use(authMW, middleware.RequireRole(identity.RoleStaff.String(), identity.RoleSuperAdmin.String()))
	{
		staff.GET("/dashboard", h.Dashboard)
		staff.GET("/bookings", h.ListBookings)
		staff.DELETE("/bookings/:id", h.DeleteBooking)
	}
	h.mount(staff.Group("/users"), accountRoutes{
		entity: "user",
		list:   h.service.ListUsers,
		get:    h.service.GetUser,
		create: h.service.CreateUser,
		update: h.service.UpdateUser,
		remove: h.service.DeleteUser,
	})
	h.mount(staff.Group("/therapists"), accountRoutes{
		entity: "therapist",
		list:   h.service.ListTherapists,
		get:    h.service.GetTherapist,
		create: h.service.CreateTherapist,
		update: h.service.UpdateTherapist,
		remove: h.service.DeleteTherapist,
	})

	superAdmin := r.Group("/api/v1/super-admin")
	superAdmin.Use(authMW, middleware.RequireRole(identity.RoleSuperAdmin.String()))
	h.mount(superAdmin.Group("/admins"), accountRoutes{
		entity: "admin",
		list:   h.service.ListAdmins,
		get:    h.service.GetAdmin,
		create: h.service.CreateAdmin,
		update: h.service.UpdateAdmin,
		remove: h.service.DeleteAdmin,
	})
}

func (h *StaffHandler) mount(g *gin.RouterGroup, routes accountRoutes) {
	g.GET("", routes.listHandler)
	g.POST("", routes.createHandler)
	g.GET("/:id", routes.getHandler)
	g.PUT("/:id", routes.updateHandler)
	g.DELETE("/:id", routes.deleteHandler)
}

// Dashboard handles GET /api/v1/staff/dashboard.
func (h *StaffHandler) Dashboard(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	dash, err := h.service.Dashboard(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dash)
}

// ListBookings handles GET /api/v1/staff/bookings.
func (h *StaffHandler) ListBookings(c *gin.Context) {
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

// DeleteBooking handles DELETE /api/v1/staff/bookings/:id.
func (h *StaffHandler) DeleteBooking(c *gin.Context) {
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

func (a accountRoutes) listHandler(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	result, err := a.list(c.Request.Context(), p, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	paginated(c, result)
}

func (a accountRoutes) getHandler(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, a.entity)
	if !ok {
		return
	}

	user, err := a.get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

func (a accountRoutes) createHandler(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req application.CreateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := a.create(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

func (a accountRoutes) updateHandler(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, a.entity)
	if !ok {
		return
	}

	var req application.UpdateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := a.update(c.Request.Context(), p, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

func (a accountRoutes) deleteHandler(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, a.entity)
	if !ok {
		return
	}

	if err := a.remove(c.Request.Context(), p, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, "Deleted successfully")
}
