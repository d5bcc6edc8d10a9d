package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"shop-service/internal/auth"
	"shop-service/internal/model"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"
	"shop-service/prometheus"
)

const principalKey = "principal"

// TokenValidator verifies a session token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwtutil.UserClaims, error)
}

// Auth authenticates requests by session cookie or bearer token.
type Auth struct {
	validator  TokenValidator
	cookieName string
	metrics    *prometheus.Metrics
}

// NewAuth creates the authentication middleware set.
func NewAuth(validator TokenValidator, cookieName string, metrics *prometheus.Metrics) *Auth {
	return &Auth{
		validator:  validator,
		cookieName: cookieName,
		metrics:    metrics,
	}
}

// RequireAuthenticated rejects requests without a valid token: 401 when
// no token is presented, 403 when it does not verify.
func (a *Auth) RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			tokenString := a.tokenFrom(c)
			if tokenString == "" {
				a.metrics.RecordAuthError("missing_token")
				log.Warn("Missing authentication token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			claims, err := a.validator.ValidateToken(tokenString)
			if err != nil {
				a.metrics.RecordAuthError("invalid_token")
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid or expired token"})
			}

			p := auth.Principal{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   model.Role(claims.Role),
			}
			c.Set(principalKey, p)
			req := c.Request()
			c.SetRequest(req.WithContext(auth.WithPrincipal(req.Context(), p)))

			log.Debug("Token validated",
				zap.Uint("user_id", claims.UserID),
				zap.String("role", claims.Role))
			return next(c)
		}
	}
}

// RequireAdmin must run after RequireAuthenticated.
func (a *Auth) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok || !p.IsAdmin() {
				a.metrics.RecordAuthError("forbidden")
				logger.FromEcho(c).Warn("Admin access denied", zap.Uint("user_id", p.UserID))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access required"})
			}
			return next(c)
		}
	}
}

// PrincipalFrom returns the caller set by RequireAuthenticated.
func PrincipalFrom(c echo.Context) (auth.Principal, bool) {
	p, ok := c.Get(principalKey).(auth.Principal)
	return p, ok
}

func (a *Auth) tokenFrom(c echo.Context) string {
	if cookie, err := c.Cookie(a.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
