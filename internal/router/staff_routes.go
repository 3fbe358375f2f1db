package router

import (
	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/handler"
	"github.com/schoolsecure/hallpass/internal/middleware"
	"github.com/schoolsecure/hallpass/internal/model"
)

// RegisterStaff registers endpoints shared by teachers and administrators
// under /v1. Staff can issue passes directly, work the pending queue, list
// and verify passes school-wide and view the hallway dashboard.
func RegisterStaff(e *echo.Echo, h *handler.StaffHandler, d *handler.DashboardHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleTeacher, model.RoleAdmin),
	)

	// ---- Passes ----
	g.POST("/passes/issue", h.Issue)
	g.GET("/passes/pending", h.Pending)
	g.PUT("/passes/:id/decide", h.Decide)
	g.GET("/passes/school", h.ListSchool)
	g.GET("/passes/verify/:code", h.Verify)

	// ---- Dashboard ----
	g.GET("/dashboard/teacher", d.Teacher, cache)
}
