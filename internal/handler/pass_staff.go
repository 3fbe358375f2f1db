package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/engine"
	"github.com/schoolsecure/hallpass/internal/model"
	"github.com/schoolsecure/hallpass/internal/queue"
	"github.com/schoolsecure/hallpass/internal/repository"
	queue_publisher "github.com/schoolsecure/hallpass/internal/service"
)

// StaffHandler serves the teacher/admin pass endpoints: issuing passes to
// students, working the pending queue, school-wide listing and hallway
// code verification.
type StaffHandler struct {
	Passes    *repository.PassRepo
	Locations *repository.LocationRepo
	Schools   *repository.SchoolRepo
	Users     *repository.UserRepo
	Events    *queue_publisher.Publisher
}

func NewStaffHandler(p *repository.PassRepo, l *repository.LocationRepo, s *repository.SchoolRepo, u *repository.UserRepo, ev *queue_publisher.Publisher) *StaffHandler {
	if p == nil || l == nil || s == nil || u == nil {
		panic("handler: StaffHandler requires non-nil repositories")
	}
	return &StaffHandler{Passes: p, Locations: l, Schools: s, Users: u, Events: ev}
}

type issuePassReq struct {
	StudentID       uint64  `json:"student_id" validate:"required"`
	LocationID      uint64  `json:"location_id" validate:"required"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gt=0,lte=480"`
	AdminNotes      *string `json:"admin_notes" validate:"omitempty,max=500"`
	IsSummons       bool    `json:"is_summons"`
	IsEarlyRelease  bool    `json:"is_early_release"`
}

// Issue creates a pass on a student's behalf: a plain office pass, a
// summons or an early release. Issued passes skip PENDING and start out
// APPROVED with the issuing staff member recorded as approver.
func (h *StaffHandler) Issue(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req issuePassReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	req.AdminNotes = optionalText(req.AdminNotes)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	issuer, err := h.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	student, err := h.Users.GetByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return respondEngineError(c, &engine.NotFoundError{Entity: "student"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := engine.CanIssuePassTo(actor, student); err != nil {
		return respondEngineError(c, err)
	}

	tx, err := h.Passes.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Read the policy snapshot in the same transaction as the pass it
	// shapes, so a settings change cannot slip in between.
	school, err := h.Schools.GetTx(ctx, tx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	loc, err := h.Locations.GetTx(ctx, tx, req.LocationID, actor.SchoolID)
	if err != nil {
		if err == repository.ErrLocationNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "location not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := engine.CheckIssuable(*loc, req.IsSummons, req.IsEarlyRelease); err != nil {
		return respondEngineError(c, err)
	}

	now := time.Now().UTC()
	var requestedEnd *time.Time
	if req.DurationMinutes != nil {
		e := now.Add(time.Duration(*req.DurationMinutes) * time.Minute)
		requestedEnd = &e
	}
	start, end, err := engine.ResolveWindow(nil, requestedEnd, now, *loc, engine.SchoolSnapshot{
		ConcurrentPassLimit: school.ConcurrentPassLimit,
		DefaultPassDuration: school.DefaultPassDuration,
	})
	if err != nil {
		return respondEngineError(c, err)
	}

	var expiredEv *queue.PassEvent
	open, err := h.Passes.FindNonTerminalByStudentTx(ctx, tx, student.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if open != nil {
		if !engine.ExpiredBy(*open, now) {
			return respondEngineError(c, &engine.ConflictError{Reason: engine.ConflictDuplicatePass})
		}
		if err := h.Passes.MarkExpiredTx(ctx, tx, open.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "expire pass failed"})
		}
		ev := passEvent(queue.EventPassExpired, open, actor.UserID, model.PassExpired)
		expiredEv = &ev
	}

	note := engine.IssuanceNote(issuer)
	approvedAt := now
	p := &model.Pass{
		SchoolID:           actor.SchoolID,
		StudentID:          student.ID,
		LocationID:         loc.ID,
		ApproverID:         &actor.UserID,
		Status:             engine.InitialStatus(*loc, true),
		RequestedStartTime: start,
		RequestedEndTime:   end,
		AllottedMinutes:    engine.DurationMinutes(start, end),
		IsSummons:          req.IsSummons,
		IsEarlyRelease:     req.IsEarlyRelease,
		AdminNotes:         req.AdminNotes,
		ApprovalNotes:      &note,
		ApprovedAt:         &approvedAt,
	}
	if err := h.Passes.CreateTx(ctx, tx, p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create pass failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	if expiredEv != nil {
		publishAsync(h.Events, *expiredEv)
	}
	publishAsync(h.Events, passEvent(queue.EventPassCreated, p, actor.UserID, p.Status))
	publishAsync(h.Events, passEvent(queue.EventPassApproved, p, actor.UserID, p.Status))
	if p.IsSummons {
		publishAsync(h.Events, passEvent(queue.EventSummonsIssued, p, actor.UserID, p.Status))
	}
	if p.IsEarlyRelease {
		publishAsync(h.Events, passEvent(queue.EventEarlyReleaseIssued, p, actor.UserID, p.Status))
	}

	detail, err := h.Passes.GetDetail(ctx, p.ID, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusCreated, echo.Map{"item": p})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": detail})
}

// Pending lists the school's PENDING passes oldest first: the queue a
// teacher works through between classes.
func (h *StaffHandler) Pending(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapViewSchoolPass); err != nil {
		return respondEngineError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Passes.ListPending(ctx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type decidePassReq struct {
	Decision      string  `json:"decision" validate:"required"`
	ApprovalNotes *string `json:"approval_notes" validate:"omitempty,max=500"`
	AdminNotes    *string `json:"admin_notes" validate:"omitempty,max=500"`
}

// Decide approves or denies a pending pass. Without an explicit note the
// decision is recorded as processed by the deciding staff member.
func (h *StaffHandler) Decide(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req decidePassReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	action := strings.ToLower(strings.TrimSpace(req.Decision))
	var target model.PassStatus
	switch action {
	case "approve":
		target = model.PassApproved
	case "deny":
		target = model.PassDenied
	default:
		return respondEngineError(c, &engine.ValidationError{Field: "decision", Reason: "decision must be approve or deny"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	staff, err := h.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	tx, err := h.Passes.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	p, err := h.Passes.GetForUpdateTx(ctx, tx, id, actor.SchoolID)
	if err != nil {
		if err == repository.ErrPassNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "pass not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := engine.CanDecidePass(actor, *p); err != nil {
		return respondEngineError(c, err)
	}

	now := time.Now().UTC()
	if engine.ExpiredBy(*p, now) {
		if err := h.Passes.MarkExpiredTx(ctx, tx, p.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "expire pass failed"})
		}
		if err := tx.Commit(); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
		}
		committed = true
		publishAsync(h.Events, passEvent(queue.EventPassExpired, p, actor.UserID, model.PassExpired))
		return respondEngineError(c, &engine.StateError{From: model.PassExpired, Action: action})
	}
	if !engine.CanTransition(p.Status, target) {
		return respondEngineError(c, &engine.StateError{From: p.Status, Action: action})
	}

	note := engine.DecisionNote(staff)
	if n := optionalText(req.ApprovalNotes); n != nil {
		note = *n
	}
	if err := h.Passes.DecideTx(ctx, tx, p.ID, actor.UserID, target, note, optionalText(req.AdminNotes)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "decide failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	evType := queue.EventPassApproved
	if target == model.PassDenied {
		evType = queue.EventPassDenied
	}
	publishAsync(h.Events, passEvent(evType, p, actor.UserID, target))

	detail, err := h.Passes.GetDetail(ctx, p.ID, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": detail})
}

// ListSchool lists the school's passes newest first. ?status= narrows by
// status, ?student= and ?location= by student or destination, ?limit=
// caps the page (default 100).
func (h *StaffHandler) ListSchool(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapViewSchoolPass); err != nil {
		return respondEngineError(c, err)
	}
	statuses, err := statusFilter(c)
	if err != nil {
		return respondEngineError(c, err)
	}
	f := repository.PassFilter{Statuses: statuses, Limit: parseLimit(c, 100)}
	if raw := strings.TrimSpace(c.QueryParam("student")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student"})
		}
		f.StudentID = id
	}
	if raw := strings.TrimSpace(c.QueryParam("location")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid location"})
		}
		f.LocationID = id
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Passes.ListBySchool(ctx, actor.SchoolID, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Verify resolves a hallway verification code. Only a code on a pass
// that is ACTIVE right now resolves; expired, completed and unknown codes
// all read the same: not found.
func (h *StaffHandler) Verify(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapVerifyCode); err != nil {
		return respondEngineError(c, err)
	}
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if len(code) != engine.VerificationCodeLen {
		return respondEngineError(c, &engine.NotFoundError{Entity: "verification code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	detail, err := h.Passes.FindActiveByCode(ctx, actor.SchoolID, code)
	if err != nil {
		if err == repository.ErrPassNotFound {
			return respondEngineError(c, &engine.NotFoundError{Entity: "verification code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": detail})
}
