package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/placementhub/auth-service/internal/service"
	"github.com/placementhub/auth-service/internal/storage"
)

// ErrorHandler translates the service layer's sentinel errors into HTTP
// statuses. Internal details never leak: the client sees the sentinel
// message only, and anything unexpected collapses to a generic 500.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if status, ok := statusFor(err); ok {
			reason := err.Error()
			if status == http.StatusServiceUnavailable {
				reason = service.ErrStoreUnavailable.Error()
			}
			if err := c.JSON(status, map[string]string{"reason": reason}); err != nil {
				log.Errorw("failed to write json response", "error", err)
			}
			return
		}

		he, ok := err.(*echo.HTTPError)
		if ok {
			if he.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			if err := c.JSON(he.Code, map[string]string{"reason": http.StatusText(he.Code)}); err != nil {
				log.Errorw("failed to write json response", "error", err)
			}
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		c.JSON(http.StatusInternalServerError, map[string]string{"reason": "internal server error"})
	}
}

func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenInvalid):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrTokenReuseDetected),
		errors.Is(err, service.ErrSessionRevoked):
		return http.StatusForbidden, true
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrPhoneTaken):
		return http.StatusBadRequest, true
	case errors.Is(err, storage.ErrUserNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}
