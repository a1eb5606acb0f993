package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/zenbook/service-booking/internal/application"
	"github.com/zenbook/service-booking/internal/platform/apperror"
	"github.com/zenbook/service-booking/internal/platform/auth"
	"github.com/zenbook/service-booking/internal/platform/middleware"
	"github.com/zenbook/service-booking/internal/platform/response"
	"github.com/zenbook/service-booking/internal/storage"
)

// ProfileHandler handles the caller's own profile.
type ProfileHandler struct {
	service *application.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(service *application.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// RegisterRoutes registers profile routes.
func (h *ProfileHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	profile := r.Group("/api/v1/profile")
	profile.Use(middleware.AuthMiddleware(jwtManager))
	{
		profile.GET("", h.Show)
		profile.PUT("", h.Update)
		profile.POST("/image", h.UploadImage)
		profile.DELETE("/image", h.DeleteImage)
	}
}

// Show handles GET /api/v1/profile.
func (h *ProfileHandler) Show(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	user, err := h.service.Show(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

// Update handles PUT /api/v1/profile.
func (h *ProfileHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req application.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.service.Update(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

// UploadImage handles POST /api/v1/profile/image with a multipart "image" field.
func (h *ProfileHandler) UploadImage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		response.Error(c, apperror.NewFieldValidationError([]apperror.FieldError{
			{Field: "image", Message: "is required"},
		}))
		return
	}
	if header.Size > storage.MaxImageBytes {
		response.Error(c, apperror.NewFieldValidationError([]apperror.FieldError{
			{Field: "image", Message: "may not be greater than 2048 kilobytes"},
		}))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, "unable to read uploaded file")
		return
	}
	defer file.Close()

	user, err := h.service.UploadImage(c.Request.Context(), p, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

// DeleteImage handles DELETE /api/v1/profile/image.
func (h *ProfileHandler) DeleteImage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	user, err := h.service.DeleteImage(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}
