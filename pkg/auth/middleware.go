package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	AuthorizationHeader = "Authorization"
	bearer              = "Bearer "
)

type Config struct {
	JWTKey string `envconfig:"JWT_KEY" default:"secret"`
	// TrustHeaders accepts pre-validated X-User-* headers from an upstream
	// gateway instead of parsing a bearer token.
	TrustHeaders bool `envconfig:"AUTH_TRUST_HEADERS"`
}

// Middleware picks the header or JWT flavor once at router build time.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.TrustHeaders {
		return AuthContext
	}
	return JwtAuthentication([]byte(cfg.JWTKey))
}

func JwtAuthentication(key []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authorization := c.Request().Header.Get(AuthorizationHeader)
			if authorization == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "No Authorization Header")
			}
			if !strings.HasPrefix(authorization, bearer) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization Header")
			}
			tokenStr := strings.TrimPrefix(authorization, bearer)
			claims := new(Claims)

			token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "JwtAccessDenied")
			}
			if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
				return echo.NewHTTPError(http.StatusUnauthorized, "TokenExpired")
			}

			req := c.Request()
			ctx := SetAuthContext(req.Context(), claims.Profile.Username, claims.Profile.Role)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

func AuthContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		userName := req.Header.Get(XUserNameHeader)
		if userName == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "user-name is empty")
		}
		userRole := req.Header.Get(XUserRoleHeader)
		if userRole == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "user-role is empty")
		}
		ctx := SetAuthContext(req.Context(), userName, userRole)
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// Require gates a route on the caller's role. The service never
// authenticates; the subject/role pair arrives pre-validated.
func Require(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := FromContext(c.Request().Context())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			if _, ok := allowed[p.Role]; !ok {
				return echo.NewHTTPError(http.StatusForbidden, "role not allowed")
			}
			return next(c)
		}
	}
}
