package router

import (
	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/handler"
	"github.com/schoolsecure/hallpass/internal/middleware"
	"github.com/schoolsecure/hallpass/internal/model"
)

// RegisterStudent registers student-scoped endpoints under /v1. All routes
// require a valid JWT and the STUDENT role. Students can request passes,
// list their own passes, start an approved pass and view their dashboard.
func RegisterStudent(e *echo.Echo, h *handler.PassHandler, d *handler.DashboardHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent),
	)
	g.POST("/passes/request", h.Request)
	g.GET("/passes/mine", h.Mine)
	g.POST("/passes/:id/activate", h.Activate)
	g.GET("/dashboard/student", d.Student, cache)
}
