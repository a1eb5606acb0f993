// Package handler exposes the application services over HTTP.
package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/platform/apperror"
	"github.com/zenbook/service-booking/internal/platform/middleware"
	"github.com/zenbook/service-booking/internal/platform/response"
)

func init() {
	// Report binding errors under the JSON field names clients send.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	}
}

// principal builds the caller from the authenticated context, writing 401 if it is missing.
func principal(c *gin.Context) (identity.Principal, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return identity.Principal{}, false
	}
	role, _ := middleware.GetUserRole(c)
	p, err := identity.NewPrincipal(userID, role)
	if err != nil {
		response.Unauthorized(c, "authentication required")
		return identity.Principal{}, false
	}
	return p, true
}

// pathID parses the :id route parameter, writing 400 if it is not a UUID.
func pathID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, fmt.Sprintf("invalid %s ID", entity))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body into req. Validation failures become a 422 field list.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.Error(c, apperror.NewFieldValidationError(fieldErrors(verrs)))
			return false
		}
		response.BadRequest(c, "invalid request body")
		return false
	}
	return true
}

func fieldErrors(verrs validator.ValidationErrors) []apperror.FieldError {
	out := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperror.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("may not be greater than %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return "is invalid"
}

// parsePagination extracts page and per_page (or limit) query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("per_page", c.DefaultQuery("limit", "15")))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 15
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}

func paginated[T any](c *gin.Context, result *apperror.PaginatedResult[T]) {
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}
