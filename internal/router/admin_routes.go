package router

import (
	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/handler"
	"github.com/schoolsecure/hallpass/internal/middleware"
	"github.com/schoolsecure/hallpass/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1. Administrators
// tune school pass policy, manage hallway locations and view the
// school-wide analytics dashboard.
func RegisterAdmin(e *echo.Echo, s *handler.SchoolHandler, l *handler.LocationHandler, d *handler.DashboardHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- School settings ----
	g.PATCH("/schools/me", s.UpdateSettings)

	// ---- Locations ----
	g.POST("/locations", l.Create)
	g.PUT("/locations/:id", l.Update)
	// Delete deactivates rather than removing the row so pass history keeps
	// pointing at a real location.
	g.DELETE("/locations/:id", l.Deactivate)

	// ---- Dashboard ----
	g.GET("/dashboard/admin", d.Admin, cache)
}
