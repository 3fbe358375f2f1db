package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/model"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles. It assumes JWTAuth
// already stored the role in the context under the key "role" as a
// model.Role. Requests carrying any other role are aborted with a 403
// Forbidden response.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(model.Role)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
