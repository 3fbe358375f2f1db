package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/engine"
	"github.com/schoolsecure/hallpass/internal/model"
	"github.com/schoolsecure/hallpass/internal/queue"
	queue_publisher "github.com/schoolsecure/hallpass/internal/service"
)

// actorFrom assembles the authenticated actor from the typed values the
// JWT middleware stored in the context. The second return is false when
// the request somehow reached a handler without passing through JWTAuth.
func actorFrom(c echo.Context) (engine.Actor, bool) {
	userID, okUser := c.Get("user_id").(uint64)
	role, okRole := c.Get("role").(model.Role)
	schoolID, okSchool := c.Get("school_id").(uint64)
	if !okUser || !okRole || !okSchool {
		return engine.Actor{}, false
	}
	return engine.Actor{UserID: userID, Role: role, SchoolID: schoolID}, true
}

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// respondEngineError translates the engine's typed errors into HTTP
// responses: validation 400, authorization 403, state and shared-
// invariant conflicts 409, unknown entities 404. Anything else is a
// plain 500 so internals never leak into a response body.
func respondEngineError(c echo.Context, err error) error {
	var (
		ve  *engine.ValidationError
		ae  *engine.AuthorizationError
		ce  *engine.ConflictError
		se  *engine.StateError
		nfe *engine.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		resp := echo.Map{"error": ve.Reason}
		if ve.Field != "" {
			resp["field"] = ve.Field
		}
		return c.JSON(http.StatusBadRequest, resp)
	case errors.As(err, &ae):
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":               "forbidden",
			"role":                string(ae.Role),
			"required_capability": string(ae.Capability),
		})
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error(), "reason": string(ce.Reason)})
	case errors.As(err, &se):
		return c.JSON(http.StatusConflict, echo.Map{"error": se.Error(), "status": string(se.From)})
	case errors.As(err, &nfe):
		return c.JSON(http.StatusNotFound, echo.Map{"error": nfe.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// statusFilter parses the optional ?status= query parameter, a comma
// separated list matched case-insensitively against the known statuses.
func statusFilter(c echo.Context) ([]model.PassStatus, error) {
	raw := strings.TrimSpace(c.QueryParam("status"))
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]model.PassStatus, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s := model.PassStatus(strings.ToUpper(part))
		if !s.Valid() {
			return nil, &engine.ValidationError{Field: "status", Reason: "unknown status " + part}
		}
		out = append(out, s)
	}
	return out, nil
}

// dashboardWindow parses the optional ?window= query parameter into the
// rolling window dashboards aggregate over. The default is one day.
func dashboardWindow(c echo.Context) (time.Duration, string, error) {
	raw := strings.ToLower(strings.TrimSpace(c.QueryParam("window")))
	switch raw {
	case "", "day":
		return engine.WindowDay, "day", nil
	case "week":
		return engine.WindowWeek, "week", nil
	case "month":
		return engine.WindowMonth, "month", nil
	}
	return 0, "", &engine.ValidationError{Field: "window", Reason: "window must be day, week or month"}
}

// parseLimit reads the optional ?limit= query parameter, falling back to
// def and capping at 200 rows per page.
func parseLimit(c echo.Context, def int) int {
	raw := strings.TrimSpace(c.QueryParam("limit"))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > 200 {
		return 200
	}
	return n
}

// optionalText trims free-text input and maps empty strings to NULL so
// the tables never mix "" and NULL for absent notes.
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// passEvent fills a broker event from a pass row. status is passed
// explicitly because the in-memory row still holds the pre-transition
// status when the handler builds the event.
func passEvent(eventType string, p *model.Pass, actorID uint64, status model.PassStatus) queue.PassEvent {
	ev := queue.NewPassEvent(eventType)
	ev.PassID = p.ID
	ev.SchoolID = p.SchoolID
	ev.StudentID = p.StudentID
	ev.ActorID = actorID
	ev.LocationID = p.LocationID
	ev.Status = string(status)
	ev.IsSummons = p.IsSummons
	ev.IsEarlyRelease = p.IsEarlyRelease
	return ev
}

// publishAsync hands an event to the broker without blocking the
// response. Publish failures are logged by the publisher; a pass
// operation never fails because the broker is down.
func publishAsync(pub *queue_publisher.Publisher, ev queue.PassEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = pub.PublishPassEvent(ctx, ev)
	}()
}
