package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/service"
)

// RateLimitChecker is what the auth endpoints need from a limiter; the
// Redis implementation lives in storage/redis.
type RateLimitChecker interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// BearerAuth requires a valid access token and stashes the live user
// record in the echo context. The record, not the token, carries the role.
func BearerAuth(authService *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			user, err := authService.UserFromAccessToken(c.Request().Context(), parts[1])
			if err != nil {
				return err
			}

			c.Set(models.MwCurrentUserKey, user)
			return next(c)
		}
	}
}

// RequireRole gates a route on the current user's role.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			for _, role := range roles {
				if user.Role == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
	}
}

// CurrentUser returns the user loaded by BearerAuth, or nil.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(models.MwCurrentUserKey).(*models.User)
	return user
}

// RateLimit throttles by client IP. A limiter failure lets the request
// through: the limiter is a shield, not a dependency.
func RateLimit(limiter RateLimitChecker, log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}

			allowed, err := limiter.Allow(c.Request().Context(), c.RealIP())
			if err != nil {
				log.Errorw("rate limiter failed", "error", err)
				return next(c)
			}
			if !allowed {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", c.Request().Method,
				"uri", v.URI,
				"status", v.Status,
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Errorw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}
