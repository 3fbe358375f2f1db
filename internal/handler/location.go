package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/engine"
	"github.com/schoolsecure/hallpass/internal/model"
	"github.com/schoolsecure/hallpass/internal/repository"
)

// LocationHandler serves the pass destination endpoints. Listing is open
// to every role (students pick a destination when requesting a pass);
// mutations are admin-only. Locations are never hard-deleted because
// historical passes keep pointing at them.
type LocationHandler struct {
	Locations *repository.LocationRepo
}

func NewLocationHandler(l *repository.LocationRepo) *LocationHandler {
	if l == nil {
		panic("handler: LocationHandler requires a non-nil repository")
	}
	return &LocationHandler{Locations: l}
}

type locationPart struct {
	ID               uint64    `json:"id"`
	SchoolID         uint64    `json:"school_id"`
	Name             string    `json:"name"`
	DefaultDuration  int       `json:"default_duration"`
	RequiresApproval bool      `json:"requires_approval"`
	EarlyReleaseOnly bool      `json:"early_release_only"`
	SummonsOnly      bool      `json:"summons_only"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toLocationPart(l model.Location) locationPart {
	return locationPart{
		ID:               l.ID,
		SchoolID:         l.SchoolID,
		Name:             l.Name,
		DefaultDuration:  l.DefaultDuration,
		RequiresApproval: l.RequiresApproval,
		EarlyReleaseOnly: l.EarlyReleaseOnly,
		SummonsOnly:      l.SummonsOnly,
		IsActive:         l.IsActive,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

// List returns the school's locations ordered by name. Active rows only
// unless an administrator asks for ?include_inactive=true.
func (h *LocationHandler) List(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	includeInactive := false
	if strings.EqualFold(c.QueryParam("include_inactive"), "true") {
		if err := engine.Authorize(actor, engine.CapManageLocations); err != nil {
			return respondEngineError(c, err)
		}
		includeInactive = true
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	locations, err := h.Locations.ListBySchool(ctx, actor.SchoolID, includeInactive)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	items := make([]locationPart, 0, len(locations))
	for _, l := range locations {
		items = append(items, toLocationPart(l))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type createLocationReq struct {
	Name             string `json:"name" validate:"required,max=100"`
	DefaultDuration  int    `json:"default_duration" validate:"gte=0,lte=480"`
	RequiresApproval bool   `json:"requires_approval"`
	EarlyReleaseOnly bool   `json:"early_release_only"`
	SummonsOnly      bool   `json:"summons_only"`
}

// Create adds a destination. A default_duration of zero means the school
// default applies.
func (h *LocationHandler) Create(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapManageLocations); err != nil {
		return respondEngineError(c, err)
	}
	var req createLocationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.SummonsOnly && req.EarlyReleaseOnly {
		return respondEngineError(c, &engine.ValidationError{Field: "summons_only", Reason: "a location cannot be both summons-only and early-release-only"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l := &model.Location{
		SchoolID:         actor.SchoolID,
		Name:             req.Name,
		DefaultDuration:  req.DefaultDuration,
		RequiresApproval: req.RequiresApproval,
		EarlyReleaseOnly: req.EarlyReleaseOnly,
		SummonsOnly:      req.SummonsOnly,
		IsActive:         true,
	}
	if err := h.Locations.Create(ctx, l); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create location failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": toLocationPart(*l)})
}

type updateLocationReq struct {
	Name             *string `json:"name" validate:"omitempty,max=100"`
	DefaultDuration  *int    `json:"default_duration" validate:"omitempty,gte=0,lte=480"`
	RequiresApproval *bool   `json:"requires_approval"`
	EarlyReleaseOnly *bool   `json:"early_release_only"`
	SummonsOnly      *bool   `json:"summons_only"`
	IsActive         *bool   `json:"is_active"`
}

// Update changes a location. Omitted fields keep their current value;
// is_active=true reactivates a previously deactivated destination.
func (h *LocationHandler) Update(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapManageLocations); err != nil {
		return respondEngineError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateLocationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l, err := h.Locations.GetByID(ctx, id, actor.SchoolID)
	if err != nil {
		if err == repository.ErrLocationNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return respondEngineError(c, &engine.ValidationError{Field: "name", Reason: "name cannot be empty"})
		}
		l.Name = name
	}
	if req.DefaultDuration != nil {
		l.DefaultDuration = *req.DefaultDuration
	}
	if req.RequiresApproval != nil {
		l.RequiresApproval = *req.RequiresApproval
	}
	if req.EarlyReleaseOnly != nil {
		l.EarlyReleaseOnly = *req.EarlyReleaseOnly
	}
	if req.SummonsOnly != nil {
		l.SummonsOnly = *req.SummonsOnly
	}
	if req.IsActive != nil {
		l.IsActive = *req.IsActive
	}
	if l.SummonsOnly && l.EarlyReleaseOnly {
		return respondEngineError(c, &engine.ValidationError{Field: "summons_only", Reason: "a location cannot be both summons-only and early-release-only"})
	}

	err = h.Locations.Update(ctx, l)
	switch err {
	case nil, repository.ErrNoChange:
	case repository.ErrLocationNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	l, err = h.Locations.GetByID(ctx, id, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": toLocationPart(*l)})
}

// Deactivate soft-deletes a location: new passes are refused, history is
// untouched. Deactivating twice is a no-op.
func (h *LocationHandler) Deactivate(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapManageLocations); err != nil {
		return respondEngineError(c, err)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Locations.Deactivate(ctx, id, actor.SchoolID)
	switch err {
	case nil, repository.ErrNoChange:
		return c.NoContent(http.StatusNoContent)
	case repository.ErrLocationNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
}
