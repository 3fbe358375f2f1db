package middleware

// identity.go defines helper functions shared across middleware files. The
// cache and rate limit key builders both need a stable string form of the
// authenticated user; this is the one place that knows how JWTAuth stores
// it in the Echo context.

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// requestUserID extracts a user identifier from the Echo context,
// tolerating the integer and string forms it may take. It returns "anon"
// when no user is authenticated.
func requestUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case uint64:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	case string:
		if v != "" {
			return v
		}
	}
	return "anon"
}
