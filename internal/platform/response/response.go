// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// ErrorBody is the error part of the envelope.
type ErrorBody struct {
	Code          string                `json:"code"`
	Message       string                `json:"message"`
	Fields        []apperror.FieldError `json:"fields,omitempty"`
	CurrentStatus string                `json:"current_status,omitempty"`
}

// Pagination is the paging metadata of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Message writes 200 with a message and no data.
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

// Paginated writes 200 with items and paging metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"pagination": Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// BadRequest writes 400 with a message.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, ErrorBody{Code: "BAD_REQUEST", Message: message})
}

// Unauthorized writes 401 with a message.
func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, ErrorBody{Code: string(apperror.KindUnauthenticated), Message: message})
}

// Error maps err to its HTTP status. Untyped errors become a generic 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, ErrorBody{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		})
		return
	}

	abort(c, StatusFor(appErr.Kind), ErrorBody{
		Code:          string(appErr.Kind),
		Message:       appErr.Message,
		Fields:        appErr.Fields,
		CurrentStatus: appErr.CurrentStatus,
	})
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindValidation, apperror.KindTherapistUnavailable:
		return http.StatusUnprocessableEntity
	case apperror.KindInvalidTransition:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": body})
}
