package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/model"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects its claims into the request context. The provided secret
// must match the one used when issuing tokens. Protected handlers read
// the authenticated identity via c.Get("user_id") (uint64),
// c.Get("role") (model.Role) and c.Get("school_id") (uint64); the
// conversions happen here once so nothing downstream touches raw claims.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with HS256 and our secret; any other signing method is
			// rejected inside the key callback.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// JSON numbers arrive as float64; a token without numeric sub
			// and school_id claims was not issued by us.
			sub, ok := claims["sub"].(float64)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			schoolID, ok := claims["school_id"].(float64)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			roleStr, ok := claims["role"].(string)
			role := model.Role(roleStr)
			if !ok || !role.Valid() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set("user_id", uint64(sub))
			c.Set("role", role)
			c.Set("school_id", uint64(schoolID))
			return next(c)
		}
	}
}
