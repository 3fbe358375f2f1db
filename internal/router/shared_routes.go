package router

import (
	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/handler"
	"github.com/schoolsecure/hallpass/internal/middleware"
	"github.com/schoolsecure/hallpass/internal/model"
)

// RegisterShared registers endpoints reachable by every authenticated role.
// Per-resource access rules (pass ownership, same-school visibility, who may
// close a pass) are enforced inside the handlers, not by the route group.
func RegisterShared(e *echo.Echo, p *handler.PassHandler, s *handler.SchoolHandler, l *handler.LocationHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent, model.RoleTeacher, model.RoleAdmin),
	)
	g.POST("/passes/:id/complete", p.Complete)
	g.GET("/passes/:id", p.Get)
	g.GET("/schools/me", s.Get)
	g.GET("/locations", l.List, cache)
}
