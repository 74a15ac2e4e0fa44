package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ShopChat/limiter"
	"ShopChat/models"
	"ShopChat/services"

	"github.com/labstack/echo/v4"
)

// tokenFrom reads the access token from the Authorization header, the
// token cookie or the ?token= query parameter, in that order.
func tokenFrom(c echo.Context) (string, error) {
	if authHeader := c.Request().Header.Get(echo.HeaderAuthorization); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("invalid authorization header")
		}
		return parts[1], nil
	}
	if cookie, err := c.Cookie(models.TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if token := c.QueryParam("token"); token != "" {
		return strings.TrimSpace(strings.TrimPrefix(token, "Bearer ")), nil
	}
	return "", errors.New("missing authorization token")
}

func AuthMiddleware(authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := tokenFrom(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": err.Error(),
				})
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid token",
				})
			}
			user, err := authService.FindUser(claims.UserID)
			if err != nil {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error": "user not found",
				})
			}

			c.Set("user", user)
			return next(c)
		}
	}
}

func AdminAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get("user").(*models.User)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"code":    401,
					"message": "unauthorized",
				})
			}
			if services.RoleOf(user) != models.RoleAdmin {
				return c.JSON(http.StatusForbidden, map[string]interface{}{
					"code":    403,
					"message": "admin only",
				})
			}
			return next(c)
		}
	}
}

type RateLimitConfig struct {
	Limit   int
	Window  time.Duration
	KeyFunc func(c echo.Context) string // empty keys fall back to the client IP
}

func NewRateLimitMiddleware(manager *limiter.Manager, config RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := ""
			if config.KeyFunc != nil {
				key = config.KeyFunc(c)
			}
			if key == "" {
				key = c.RealIP()
			}
			allowed, err := manager.Allow(c.Request().Context(), fmt.Sprintf("limiter:%s", key), config.Limit, config.Window)
			if err != nil {
				// fail open
				c.Logger().Errorf("rate limit redis error: %v", err)
				return next(c)
			}
			if !allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"code": "429",
					"msg":  "Too Many Requests",
				})
			}
			return next(c)
		}
	}
}
