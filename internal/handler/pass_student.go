package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/engine"
	"github.com/schoolsecure/hallpass/internal/model"
	"github.com/schoolsecure/hallpass/internal/queue"
	"github.com/schoolsecure/hallpass/internal/repository"
	queue_publisher "github.com/schoolsecure/hallpass/internal/service"
)

// PassHandler serves the student self-service pass endpoints: request,
// activate, complete, and reads of the student's own passes.
type PassHandler struct {
	Passes    *repository.PassRepo
	Locations *repository.LocationRepo
	Schools   *repository.SchoolRepo
	Events    *queue_publisher.Publisher
}

// NewPassHandler constructs a PassHandler and panics when any repository
// is nil, so wiring mistakes surface at startup rather than on the first
// request. Events may be nil; publishing is then disabled.
func NewPassHandler(p *repository.PassRepo, l *repository.LocationRepo, s *repository.SchoolRepo, ev *queue_publisher.Publisher) *PassHandler {
	if p == nil || l == nil || s == nil {
		panic("handler: PassHandler requires non-nil repositories")
	}
	return &PassHandler{Passes: p, Locations: l, Schools: s, Events: ev}
}

type requestPassReq struct {
	LocationID         uint64     `json:"location_id" validate:"required"`
	RequestedStartTime *time.Time `json:"requested_start_time"`
	RequestedEndTime   *time.Time `json:"requested_end_time"`
	StudentReason      *string    `json:"student_reason" validate:"omitempty,max=500"`
}

// Request creates a pass for the authenticated student. The destination
// decides whether the pass starts PENDING or skips straight to APPROVED;
// a student with a pass already in flight is rejected with a conflict.
func (h *PassHandler) Request(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapRequestPass); err != nil {
		return respondEngineError(c, err)
	}
	var req requestPassReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	req.StudentReason = optionalText(req.StudentReason)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

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
	if err := engine.CheckSelfRequestable(*loc); err != nil {
		return respondEngineError(c, err)
	}

	now := time.Now().UTC()
	start, end, err := engine.ResolveWindow(req.RequestedStartTime, req.RequestedEndTime, now, *loc, engine.SchoolSnapshot{
		ConcurrentPassLimit: school.ConcurrentPassLimit,
		DefaultPassDuration: school.DefaultPassDuration,
	})
	if err != nil {
		return respondEngineError(c, err)
	}

	// One open pass per student. A row past its deadline does not count:
	// it is flipped to EXPIRED in the same transaction and the request
	// proceeds.
	var expiredEv *queue.PassEvent
	open, err := h.Passes.FindNonTerminalByStudentTx(ctx, tx, actor.UserID)
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

	p := &model.Pass{
		SchoolID:           actor.SchoolID,
		StudentID:          actor.UserID,
		LocationID:         loc.ID,
		Status:             engine.InitialStatus(*loc, false),
		RequestedStartTime: start,
		RequestedEndTime:   end,
		AllottedMinutes:    engine.DurationMinutes(start, end),
		StudentReason:      req.StudentReason,
	}
	if p.Status == model.PassApproved {
		note := engine.AutoApprovalNote
		approvedAt := now
		p.ApprovalNotes = &note
		p.ApprovedAt = &approvedAt
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
	if p.Status == model.PassApproved {
		publishAsync(h.Events, passEvent(queue.EventPassApproved, p, actor.UserID, p.Status))
	}

	detail, err := h.Passes.GetDetail(ctx, p.ID, actor.SchoolID)
	if err != nil {
		// The row is committed; return the bare pass rather than fail.
		return c.JSON(http.StatusCreated, echo.Map{"item": p})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": detail})
}

// Mine lists the authenticated student's passes, newest first. ?status=
// narrows by status, ?limit= caps the page (default 50).
func (h *PassHandler) Mine(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := engine.Authorize(actor, engine.CapViewOwnPasses); err != nil {
		return respondEngineError(c, err)
	}
	statuses, err := statusFilter(c)
	if err != nil {
		return respondEngineError(c, err)
	}
	limit := parseLimit(c, 50)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Passes.ListByStudent(ctx, actor.UserID, statuses, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Activate starts an approved pass: the student is walking out the door.
// Admission against the school's concurrent pass limit happens here,
// under the school row lock, and the verification code is issued in the
// same transaction.
func (h *PassHandler) Activate(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

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
	if err := engine.CanActivatePass(actor, *p); err != nil {
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
		return respondEngineError(c, &engine.StateError{From: model.PassExpired, Action: "activate"})
	}
	if p.Status == model.PassActive {
		// Already out: activating twice is a no-op, not an error.
		detail, err := h.Passes.GetDetail(ctx, p.ID, actor.SchoolID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, echo.Map{"item": detail})
	}
	if !engine.CanTransition(p.Status, model.PassActive) {
		return respondEngineError(c, &engine.StateError{From: p.Status, Action: "activate"})
	}
	if engine.ClassifyActivation(*p, now) == engine.ActivationPremature {
		return respondEngineError(c, &engine.ValidationError{Field: "requested_start_time", Reason: "pass window has not opened yet"})
	}

	// Lock the school row before counting: concurrent activations in the
	// same school serialize here, so the count cannot move between the
	// check and the update.
	school, err := h.Schools.GetForUpdateTx(ctx, tx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	active, err := h.Passes.CountActiveTx(ctx, tx, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if active >= school.ConcurrentPassLimit {
		return respondEngineError(c, &engine.ConflictError{Reason: engine.ConflictAtCapacity})
	}

	for attempt := 0; ; attempt++ {
		code, err := engine.NewVerificationCode()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue code failed"})
		}
		err = h.Passes.ActivateTx(ctx, tx, p.ID, code, now)
		if err == nil {
			break
		}
		if err == repository.ErrCodeInUse && attempt < 2 {
			continue
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activate failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	publishAsync(h.Events, passEvent(queue.EventPassActivated, p, actor.UserID, model.PassActive))

	detail, err := h.Passes.GetDetail(ctx, p.ID, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": detail})
}

// Complete closes an active pass: the student is back in class. The
// measured absence is recorded once, here, and never recomputed.
func (h *PassHandler) Complete(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

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
	if err := engine.CanCompletePass(actor, *p); err != nil {
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
		return respondEngineError(c, &engine.StateError{From: model.PassExpired, Action: "complete"})
	}
	if !engine.CanTransition(p.Status, model.PassCompleted) {
		return respondEngineError(c, &engine.StateError{From: p.Status, Action: "complete"})
	}

	start := p.RequestedStartTime
	if p.ActualStartTime != nil {
		start = *p.ActualStartTime
	}
	if err := h.Passes.CompleteTx(ctx, tx, p.ID, now, engine.DurationMinutes(start, now)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "complete failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	publishAsync(h.Events, passEvent(queue.EventPassCompleted, p, actor.UserID, model.PassCompleted))

	detail, err := h.Passes.GetDetail(ctx, p.ID, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": detail})
}

// Get returns one pass with its joined names. Students can read only
// their own passes; staff can read any pass in their school.
func (h *PassHandler) Get(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Passes.GetByID(ctx, id, actor.SchoolID)
	if err != nil {
		if err == repository.ErrPassNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "pass not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := engine.CanViewPass(actor, *p); err != nil {
		return respondEngineError(c, err)
	}

	detail, err := h.Passes.GetDetail(ctx, id, actor.SchoolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": detail})
}
