package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/clinicore/booking-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps engine errors onto HTTP statuses and sends the
// error envelope.
func RespondWithError(c *gin.Context, err error) {
	status := statusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    status,
			Message: message,
		},
	})
}

func statusFor(err error) int {
	var invalidTransition *apperrors.InvalidTransitionError
	var invalidRange *apperrors.InvalidTimeRangeError
	var appErr *apperrors.AppError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrStaleWrite):
		return http.StatusConflict
	case errors.As(err, &invalidTransition),
		errors.As(err, &invalidRange),
		errors.Is(err, apperrors.ErrCompletionTooEarly):
		return http.StatusUnprocessableEntity
	case errors.As(err, &appErr):
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			return http.StatusNotFound
		case apperrors.ErrCodeBadRequest:
			return http.StatusBadRequest
		case apperrors.ErrCodeConflict:
			return http.StatusConflict
		case apperrors.ErrCodeUnprocessable:
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}
