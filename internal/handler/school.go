package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/engine"
	"github.com/schoolsecure/hallpass/internal/model"
	"github.com/schoolsecure/hallpass/internal/repository"
)

// SchoolHandler serves the school configuration endpoints. Every actor
// reads their own school; only administrators change the two pass knobs.
type SchoolHandler struct {
	Schools *repository.SchoolRepo
}

func NewSchoolHandler(s *repository.SchoolRepo) *SchoolHandler {
	if s == nil {
		panic("handler: SchoolHandler requires a non-nil repository")
	}
	return &SchoolHandler{Schools: s}
}

type schoolPart struct {
	ID                  uint64    `json:"id"`
	Name                string    `json:"name"`
	ConcurrentPassLimit int       `json:"concurrent_pass_limit"`
	DefaultPassDuration int       `json:"default_pass_duration"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toSchoolPart(s model.School) schoolPart {
	return schoolPart{
		ID:                  s.ID,
		Name:                s.Name,
		ConcurrentPassLimit: s.ConcurrentPassLimit,
		DefaultPassDuration: s.DefaultPassDuration,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

// Get returns the actor's own school.
func (h *SchoolHandler) Get(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	school, err := h.Schools.GetByID(ctx, actor.SchoolID)
	if err != nil {
		if err == repository.ErrSchoolNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "school not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toSchoolPart(*school)})
}

type updateSchoolReq struct {
	ConcurrentPassLimit *int `json:"concurrent_pass_limit" validate:"omitempty,gt=0,lte=1000"`
	DefaultPassDuration *int `json:"default_pass_duration" validate:"omitempty,gt=0,lte=480"`
}

// UpdateSettings changes the concurrent pass limit and/or the default
// pass duration. Omitted fields keep their current value; the new limit
// applies to the next admission check, already-active passes are never
// revoked by lowering it.
func (h *SchoolHandler) UpdateSettings(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapConfigureSchool); err != nil {
		return respondEngineError(c, err)
	}
	var req updateSchoolReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.ConcurrentPassLimit == nil && req.DefaultPassDuration == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	school, err := h.Schools.GetByID(ctx, actor.SchoolID)
	if err != nil {
		if err == repository.ErrSchoolNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "school not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	limit := school.ConcurrentPassLimit
	if req.ConcurrentPassLimit != nil {
		limit = *req.ConcurrentPassLimit
	}
	duration := school.DefaultPassDuration
	if req.DefaultPassDuration != nil {
		duration = *req.DefaultPassDuration
	}

	err = h.Schools.UpdateSettings(ctx, actor.SchoolID, limit, duration)
	switch err {
	case nil, repository.ErrNoChange:
	case repository.ErrSchoolNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "school not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	school, err = h.Schools.GetByID(ctx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toSchoolPart(*school)})
}
