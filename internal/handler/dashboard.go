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

// DashboardHandler serves the role-specific analytics views. Every
// aggregation query always runs; when a window holds fewer completed
// passes than the minimum sample size the duration metric is reported as
// the explicit insufficient-data sentinel, never as a zero.
type DashboardHandler struct {
	Passes  *repository.PassRepo
	Users   *repository.UserRepo
	Schools *repository.SchoolRepo
}

func NewDashboardHandler(p *repository.PassRepo, u *repository.UserRepo, s *repository.SchoolRepo) *DashboardHandler {
	if p == nil || u == nil || s == nil {
		panic("handler: DashboardHandler requires non-nil repositories")
	}
	return &DashboardHandler{Passes: p, Users: u, Schools: s}
}

// Student returns the student's own view: the pass they are out on right
// now (if any), their ten most recent passes and lifetime totals.
func (h *DashboardHandler) Student(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapViewDashboard); err != nil {
		return respondEngineError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recent, err := h.Passes.ListByStudent(ctx, actor.UserID, nil, 10)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	actives, err := h.Passes.ListByStudent(ctx, actor.UserID, []model.PassStatus{model.PassActive}, 1)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	var active *repository.PassDetail
	if len(actives) > 0 {
		active = &actives[0]
	}
	completed, totalMinutes, err := h.Passes.StudentStats(ctx, actor.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"active_pass":       active,
		"recent_passes":     recent,
		"completed_passes":  completed,
		"total_minutes_out": totalMinutes,
	})
}

// Teacher returns the staff view: the pending decision queue, how many
// students are out right now, the actor's own decision count and
// duration metrics for the window, and the school-wide equivalents.
// The personal and school duration metrics each carry their own sample
// status.
func (h *DashboardHandler) Teacher(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapViewDashboard); err != nil {
		return respondEngineError(c, err)
	}
	window, label, err := dashboardWindow(c)
	if err != nil {
		return respondEngineError(c, err)
	}
	since := time.Now().UTC().Add(-window)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pending, err := h.Passes.ListPending(ctx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	activeNow, err := h.Passes.CountActive(ctx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	decided, err := h.Passes.CountDecidedBy(ctx, actor.UserID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	myCompleted, myMinutes, err := h.Passes.CompletedStatsByApprover(ctx, actor.UserID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	counts, err := h.Passes.StatusCountsSince(ctx, actor.SchoolID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	completed, totalMinutes, err := h.Passes.CompletedStats(ctx, actor.SchoolID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"window":        label,
		"pending":       pending,
		"pending_count": len(pending),
		"active_now":    activeNow,
		"decided_by_me": decided,
		"mine": echo.Map{
			"completed_passes":         myCompleted,
			"average_duration_minutes": engine.AverageDuration(myMinutes, myCompleted),
			"metric_status":            engine.SampleStatus(myCompleted),
		},
		"school": echo.Map{
			"status_counts":            counts,
			"completed_passes":         completed,
			"average_duration_minutes": engine.AverageDuration(totalMinutes, completed),
			"metric_status":            engine.SampleStatus(completed),
		},
	})
}

// Admin returns the school-wide view: status counts over the window,
// duration metrics, the peak request hour, the busiest approvers and
// destinations, and utilization against the concurrent pass limit.
func (h *DashboardHandler) Admin(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapViewDashboard); err != nil {
		return respondEngineError(c, err)
	}
	window, label, err := dashboardWindow(c)
	if err != nil {
		return respondEngineError(c, err)
	}
	since := time.Now().UTC().Add(-window)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	school, err := h.Schools.GetByID(ctx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	activeNow, err := h.Passes.CountActive(ctx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	counts, err := h.Passes.StatusCountsSince(ctx, actor.SchoolID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	completed, totalMinutes, err := h.Passes.CompletedStats(ctx, actor.SchoolID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	buckets, err := h.Passes.HourBuckets(ctx, actor.SchoolID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	approvers, err := h.Passes.ApproverCounts(ctx, actor.SchoolID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	locations, err := h.Passes.LocationCounts(ctx, actor.SchoolID, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	staff, err := h.Users.CountActiveStaff(ctx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"window":                   label,
		"active_now":               activeNow,
		"concurrent_pass_limit":    school.ConcurrentPassLimit,
		"status_counts":            counts,
		"total_passes":             total,
		"completed_passes":         completed,
		"average_duration_minutes": engine.AverageDuration(totalMinutes, completed),
		"metric_status":            engine.SampleStatus(completed),
		"peak_hour":                engine.PeakHour(buckets),
		"hour_buckets":             buckets,
		"top_approvers":            approvers,
		"passes_per_teacher":       engine.RatePerTeacher(total, staff),
		"location_counts":          locations,
	})
}
