package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbook/service-booking/internal/platform/apperror"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      *ErrorBody      `json:"error"`
	Pagination *Pagination     `json:"pagination"`
}

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	router := gin.New()
	router.GET("/", h)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestError_MapsKindsToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthenticated", apperror.NewUnauthenticatedError("login"), http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"forbidden", apperror.NewForbiddenError("no"), http.StatusForbidden, "FORBIDDEN"},
		{"not found", fmt.Errorf("wrap: %w", apperror.NewNotFoundError("Booking", "x")), http.StatusNotFound, "NOT_FOUND"},
		{"validation", apperror.NewValidationError("bad"), http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"unavailable", apperror.NewTherapistUnavailableError("t"), http.StatusUnprocessableEntity, "THERAPIST_UNAVAILABLE"},
		{"transition", apperror.NewInvalidTransitionError("approved", "declined"), http.StatusBadRequest, "INVALID_TRANSITION"},
		{"conflict", apperror.NewConflictError("raced"), http.StatusConflict, "CONFLICT"},
		{"untyped", fmt.Errorf("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := serve(t, func(c *gin.Context) { Error(c, tt.err) })

			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestError_PreservesStructuredDetail(t *testing.T) {
	_, env := serve(t, func(c *gin.Context) {
		Error(c, apperror.NewInvalidTransitionError("approved", "approved").
			WithMessage("Only pending bookings can be accepted. Current status: approved"))
	})
	assert.Equal(t, "approved", env.Error.CurrentStatus)
	assert.Equal(t, "Only pending bookings can be accepted. Current status: approved", env.Error.Message)

	_, env = serve(t, func(c *gin.Context) {
		var f apperror.FieldErrors
		f.Add("address", "is required")
		Error(c, f.Err())
	})
	require.Len(t, env.Error.Fields, 1)
	assert.Equal(t, "address", env.Error.Fields[0].Field)
}

func TestPaginated(t *testing.T) {
	rec, env := serve(t, func(c *gin.Context) { Paginated(c, []string{"a", "b"}, 5, 1, 2) })

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 3, env.Pagination.TotalPages)
	assert.JSONEq(t, `["a","b"]`, string(env.Data))
}
