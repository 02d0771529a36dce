package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/service"
	"github.com/placementhub/auth-service/internal/util"
)

type Controller struct {
	authService *service.AuthService
	sessionCfg  *util.SessionConfig
	log         *zap.SugaredLogger
}

func NewController(authService *service.AuthService, sessionCfg *util.SessionConfig, log *zap.SugaredLogger) *Controller {
	return &Controller{
		authService: authService,
		sessionCfg:  sessionCfg,
		log:         log,
	}
}

func (c *Controller) AuthService() *service.AuthService {
	return c.authService
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/auth/register).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := c.authService.Register(ctx.Request().Context(), req, clientMeta(ctx))
	if err != nil {
		return err
	}

	c.setRefreshCookie(ctx, result.RefreshToken)
	return ctx.JSON(http.StatusCreated, models.AuthResponse{
		User:        result.User,
		AccessToken: result.AccessToken,
	})
}

// (POST /api/auth/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := c.authService.Login(ctx.Request().Context(), req, clientMeta(ctx))
	if err != nil {
		return err
	}

	c.setRefreshCookie(ctx, result.RefreshToken)
	return ctx.JSON(http.StatusOK, models.AuthResponse{
		User:        result.User,
		AccessToken: result.AccessToken,
	})
}

// (POST /api/auth/refresh). Reads the refresh cookie, no body. On any
// failure the cookie is left untouched; only a successful rotation sets
// the new one.
func (c *Controller) Refresh(ctx echo.Context) error {
	cookie, err := ctx.Cookie(models.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no refresh token")
	}

	result, err := c.authService.Refresh(ctx.Request().Context(), cookie.Value, clientMeta(ctx))
	if err != nil {
		return err
	}

	c.setRefreshCookie(ctx, result.RefreshToken)
	return ctx.JSON(http.StatusOK, models.AccessTokenResponse{
		AccessToken: result.AccessToken,
	})
}

// (POST /api/auth/logout). Idempotent: succeeds with or without a live
// cookie.
func (c *Controller) Logout(ctx echo.Context) error {
	presented := ""
	if cookie, err := ctx.Cookie(models.RefreshCookieName); err == nil {
		presented = cookie.Value
	}

	if err := c.authService.Logout(ctx.Request().Context(), presented, clientMeta(ctx)); err != nil {
		return err
	}

	c.clearRefreshCookie(ctx)
	return ctx.JSON(http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// (GET /api/auth/me).
func (c *Controller) Me(ctx echo.Context) error {
	user := currentUser(ctx)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	info, err := c.authService.Me(ctx.Request().Context(), user.ID)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, info)
}

// (PUT /api/auth/profile).
func (c *Controller) UpdateProfile(ctx echo.Context) error {
	user := currentUser(ctx)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req models.UpdateProfileRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	info, err := c.authService.UpdateProfile(ctx.Request().Context(), user.ID, req)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, info)
}

// (PUT /api/auth/change-password).
func (c *Controller) ChangePassword(ctx echo.Context) error {
	user := currentUser(ctx)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req models.ChangePasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.authService.ChangePassword(ctx.Request().Context(), user.ID, req, clientMeta(ctx)); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]string{"message": "password changed"})
}

// (POST /api/auth/create-user). Admin only, enforced by middleware.
func (c *Controller) CreateUser(ctx echo.Context) error {
	admin := currentUser(ctx)
	if admin == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req models.CreateUserRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	info, err := c.authService.CreateUser(ctx.Request().Context(), req, admin.ID, clientMeta(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, info)
}

func (c *Controller) setRefreshCookie(ctx echo.Context, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     models.RefreshCookieName,
		Value:    token,
		Path:     "/api/auth",
		MaxAge:   int(c.sessionCfg.CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.sessionCfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c *Controller) clearRefreshCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     models.RefreshCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.sessionCfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func currentUser(ctx echo.Context) *models.User {
	user, _ := ctx.Get(models.MwCurrentUserKey).(*models.User)
	return user
}

func clientMeta(ctx echo.Context) models.ClientMeta {
	return models.ClientMeta{
		IPAddress: ctx.RealIP(),
		UserAgent: ctx.Request().UserAgent(),
	}
}
