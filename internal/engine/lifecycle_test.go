package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/schoolsecure/hallpass/internal/model"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to model.PassStatus }{
		{model.PassPending, model.PassApproved},
		{model.PassPending, model.PassDenied},
		{model.PassPending, model.PassExpired},
		{model.PassApproved, model.PassActive},
		{model.PassApproved, model.PassExpired},
		{model.PassActive, model.PassCompleted},
		{model.PassActive, model.PassExpired},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to model.PassStatus }{
		{model.PassPending, model.PassActive},
		{model.PassPending, model.PassCompleted},
		{model.PassApproved, model.PassCompleted},
		{model.PassApproved, model.PassDenied},
		{model.PassActive, model.PassApproved},
		{model.PassActive, model.PassDenied},
		{model.PassCompleted, model.PassActive},
		{model.PassCompleted, model.PassExpired},
		{model.PassDenied, model.PassApproved},
		{model.PassDenied, model.PassActive},
		{model.PassExpired, model.PassActive},
		{model.PassExpired, model.PassApproved},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []model.PassStatus{
		model.PassPending, model.PassApproved, model.PassActive,
		model.PassCompleted, model.PassDenied, model.PassExpired,
	}
	for _, from := range all {
		if !from.Terminal() {
			continue
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Fatalf("terminal state %s has exit to %s", from, to)
			}
		}
	}
}

func TestInitialStatus(t *testing.T) {
	cases := []struct {
		name        string
		requires    bool
		staffIssued bool
		want        model.PassStatus
	}{
		{"pre-approved self-request", false, false, model.PassApproved},
		{"approval-required self-request", true, false, model.PassPending},
		{"staff issuance to approval-required location", true, true, model.PassApproved},
		{"staff issuance to pre-approved location", false, true, model.PassApproved},
	}
	for _, tc := range cases {
		loc := model.Location{RequiresApproval: tc.requires, IsActive: true}
		if got := InitialStatus(loc, tc.staffIssued); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestCheckSelfRequestable(t *testing.T) {
	if err := CheckSelfRequestable(model.Location{IsActive: true}); err != nil {
		t.Fatalf("plain location should be requestable: %v", err)
	}

	var nf *NotFoundError
	if err := CheckSelfRequestable(model.Location{IsActive: false}); !errors.As(err, &nf) {
		t.Fatalf("inactive location should be not-found, got %v", err)
	}

	var ve *ValidationError
	if err := CheckSelfRequestable(model.Location{IsActive: true, SummonsOnly: true}); !errors.As(err, &ve) {
		t.Fatalf("summons-only location should fail validation, got %v", err)
	}
	if err := CheckSelfRequestable(model.Location{IsActive: true, EarlyReleaseOnly: true}); !errors.As(err, &ve) {
		t.Fatalf("early-release-only location should fail validation, got %v", err)
	}
}

func TestResolveWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	loc := model.Location{DefaultDuration: 20, IsActive: true}
	school := SchoolSnapshot{DefaultPassDuration: 10}

	start, end, err := ResolveWindow(nil, nil, now, loc, school)
	if err != nil {
		t.Fatalf("defaulted window errored: %v", err)
	}
	if !start.Equal(now) || !end.Equal(now.Add(20*time.Minute)) {
		t.Fatalf("expected [now, now+20m], got [%s, %s]", start, end)
	}

	// Location without its own duration falls back to the school default.
	start, end, err = ResolveWindow(nil, nil, now, model.Location{IsActive: true}, school)
	if err != nil {
		t.Fatalf("school-default window errored: %v", err)
	}
	if !end.Equal(start.Add(10 * time.Minute)) {
		t.Fatalf("expected school default 10m, got %s", end.Sub(start))
	}

	reqStart := now.Add(30 * time.Minute)
	reqEnd := now.Add(45 * time.Minute)
	start, end, err = ResolveWindow(&reqStart, &reqEnd, now, loc, school)
	if err != nil {
		t.Fatalf("explicit window errored: %v", err)
	}
	if !start.Equal(reqStart) || !end.Equal(reqEnd) {
		t.Fatalf("explicit window not respected: [%s, %s]", start, end)
	}

	var ve *ValidationError
	backwards := now.Add(-5 * time.Minute)
	if _, _, err := ResolveWindow(&reqStart, &backwards, now, loc, school); !errors.As(err, &ve) {
		t.Fatalf("backwards window should fail validation, got %v", err)
	}

	pastStart := now.Add(-2 * time.Hour)
	pastEnd := now.Add(-1 * time.Hour)
	if _, _, err := ResolveWindow(&pastStart, &pastEnd, now, loc, school); !errors.As(err, &ve) {
		t.Fatalf("elapsed window should fail validation, got %v", err)
	}
}

func TestClassifyActivation(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(15 * time.Minute)
	pass := model.Pass{
		Status:             model.PassApproved,
		RequestedStartTime: start,
		RequestedEndTime:   end,
	}

	cases := []struct {
		name string
		now  time.Time
		want ActivationOutcome
	}{
		{"before window", start.Add(-time.Minute), ActivationPremature},
		{"at window open", start, ActivationOK},
		{"mid window", start.Add(7 * time.Minute), ActivationOK},
		{"at window close", end, ActivationOK},
		{"after window", end.Add(time.Second), ActivationExpired},
	}
	for _, tc := range cases {
		if got := ClassifyActivation(pass, tc.now); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestExpiryDeadline(t *testing.T) {
	reqStart := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	reqEnd := reqStart.Add(10 * time.Minute)
	actualStart := reqStart.Add(3 * time.Minute)

	pending := model.Pass{Status: model.PassPending, RequestedStartTime: reqStart, RequestedEndTime: reqEnd, AllottedMinutes: 10}
	if deadline, ok := ExpiryDeadline(pending); !ok || !deadline.Equal(reqEnd) {
		t.Fatalf("pending deadline should be window end, got %v ok=%v", deadline, ok)
	}

	approved := pending
	approved.Status = model.PassApproved
	if deadline, ok := ExpiryDeadline(approved); !ok || !deadline.Equal(reqEnd) {
		t.Fatalf("approved deadline should be window end, got %v ok=%v", deadline, ok)
	}

	// An active pass gets its full allotted minutes from actual departure,
	// even when that runs past the requested window.
	active := approved
	active.Status = model.PassActive
	active.ActualStartTime = &actualStart
	want := actualStart.Add(10 * time.Minute)
	if deadline, ok := ExpiryDeadline(active); !ok || !deadline.Equal(want) {
		t.Fatalf("active deadline should be start+allotted, got %v ok=%v", deadline, ok)
	}

	completed := active
	completed.Status = model.PassCompleted
	if _, ok := ExpiryDeadline(completed); ok {
		t.Fatal("terminal pass should have no expiry deadline")
	}

	if !ExpiredBy(active, want.Add(time.Second)) {
		t.Fatal("active pass past its deadline should be expired")
	}
	if ExpiredBy(active, want) {
		t.Fatal("deadline instant itself is still inside the window")
	}
}

func TestDurationMinutes(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		end  time.Time
		want int
	}{
		{"fifteen minutes", base.Add(15 * time.Minute), 15},
		{"truncates seconds", base.Add(15*time.Minute + 30*time.Second), 15},
		{"sub-minute trip", base.Add(59 * time.Second), 0},
		{"zero", base, 0},
		{"clock skew clamps to zero", base.Add(-2 * time.Minute), 0},
	}
	for _, tc := range cases {
		if got := DurationMinutes(base, tc.end); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestPolicyNotes(t *testing.T) {
	issuer := model.User{Role: model.RoleTeacher, FirstName: "Dana", LastName: "Reyes"}
	if got := IssuanceNote(issuer); got != "Issued by teacher Dana Reyes" {
		t.Fatalf("unexpected issuance note: %q", got)
	}
	admin := model.User{Role: model.RoleAdmin, FirstName: "Lee", LastName: "Park"}
	if got := IssuanceNote(admin); got != "Issued by admin Lee Park" {
		t.Fatalf("unexpected admin issuance note: %q", got)
	}
	if got := DecisionNote(issuer); got != "Processed by Dana Reyes" {
		t.Fatalf("unexpected decision note: %q", got)
	}
}
