package router

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/handler"
	"github.com/schoolsecure/hallpass/internal/middleware"
	"github.com/schoolsecure/hallpass/internal/model"
)

// Validator adapts go-playground/validator to echo's Validator interface so
// handlers can run struct-tag validation on bound request bodies.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds the validator wired into echo at startup.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers authentication routes and the authenticated profile
// endpoint. Unauthenticated operations live under /v1/auth, while /v1/me
// requires a valid access token from any role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; refresh-access only mints a new
	// access token and leaves the stored refresh token in place.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleStudent, model.RoleTeacher, model.RoleAdmin))
	auth.GET("/me", a.Me)

	// Alias outside the auth prefix. Logout accepts either a refresh token in
	// the body (single session) or a bearer token (revoke all sessions), so it
	// does not sit behind JWTAuth.
	e.POST("/v1/logout", a.Logout)
}
