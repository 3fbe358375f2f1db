package engine

import (
	"errors"
	"testing"

	"github.com/schoolsecure/hallpass/internal/model"
)

func TestCapabilityTable(t *testing.T) {
	cases := []struct {
		role    model.Role
		cap     Capability
		allowed bool
	}{
		{model.RoleStudent, CapRequestPass, true},
		{model.RoleStudent, CapActivatePass, true},
		{model.RoleStudent, CapCompletePass, true},
		{model.RoleStudent, CapViewDashboard, true},
		{model.RoleStudent, CapIssuePass, false},
		{model.RoleStudent, CapDecidePass, false},
		{model.RoleStudent, CapVerifyCode, false},
		{model.RoleStudent, CapConfigureSchool, false},

		{model.RoleTeacher, CapIssuePass, true},
		{model.RoleTeacher, CapDecidePass, true},
		{model.RoleTeacher, CapViewSchoolPass, true},
		{model.RoleTeacher, CapVerifyCode, true},
		{model.RoleTeacher, CapRequestPass, false},
		{model.RoleTeacher, CapConfigureSchool, false},
		{model.RoleTeacher, CapManageLocations, false},

		{model.RoleAdmin, CapConfigureSchool, true},
		{model.RoleAdmin, CapManageLocations, true},
	}
	for _, tc := range cases {
		actor := Actor{UserID: 1, Role: tc.role, SchoolID: 1}
		err := Authorize(actor, tc.cap)
		if tc.allowed && err != nil {
			t.Fatalf("%s should hold %s: %v", tc.role, tc.cap, err)
		}
		if !tc.allowed && err == nil {
			t.Fatalf("%s should not hold %s", tc.role, tc.cap)
		}
	}
}

func TestAdminInheritsTeacherCapabilities(t *testing.T) {
	for cap := range capabilities[model.RoleTeacher] {
		if !capabilities[model.RoleAdmin][cap] {
			t.Fatalf("admin is missing teacher capability %s", cap)
		}
	}
}

func TestAuthorizeDenialIsStructured(t *testing.T) {
	err := Authorize(Actor{Role: model.RoleStudent}, CapDecidePass)
	var authz *AuthorizationError
	if !errors.As(err, &authz) {
		t.Fatalf("expected AuthorizationError, got %T", err)
	}
	if authz.Role != model.RoleStudent || authz.Capability != CapDecidePass {
		t.Fatalf("denial lost its structure: %+v", authz)
	}
}

func TestCanViewPass(t *testing.T) {
	pass := model.Pass{StudentID: 10, SchoolID: 1}

	owner := Actor{UserID: 10, Role: model.RoleStudent, SchoolID: 1}
	if err := CanViewPass(owner, pass); err != nil {
		t.Fatalf("owner should view own pass: %v", err)
	}

	otherStudent := Actor{UserID: 11, Role: model.RoleStudent, SchoolID: 1}
	if err := CanViewPass(otherStudent, pass); err == nil {
		t.Fatal("student should not view another student's pass")
	}

	teacher := Actor{UserID: 20, Role: model.RoleTeacher, SchoolID: 1}
	if err := CanViewPass(teacher, pass); err != nil {
		t.Fatalf("teacher should view school pass: %v", err)
	}

	otherSchoolTeacher := Actor{UserID: 21, Role: model.RoleTeacher, SchoolID: 2}
	if err := CanViewPass(otherSchoolTeacher, pass); err == nil {
		t.Fatal("teacher should not view a pass from another school")
	}
}

func TestCanActivatePass(t *testing.T) {
	pass := model.Pass{StudentID: 10, SchoolID: 1}

	if err := CanActivatePass(Actor{UserID: 10, Role: model.RoleStudent, SchoolID: 1}, pass); err != nil {
		t.Fatalf("owner should activate: %v", err)
	}
	if err := CanActivatePass(Actor{UserID: 11, Role: model.RoleStudent, SchoolID: 1}, pass); err == nil {
		t.Fatal("non-owner should not activate")
	}
	// Activation is strictly student-owned; staff roles lack the capability.
	if err := CanActivatePass(Actor{UserID: 20, Role: model.RoleTeacher, SchoolID: 1}, pass); err == nil {
		t.Fatal("teacher should not activate a student's pass")
	}
}

func TestCanCompletePass(t *testing.T) {
	pass := model.Pass{StudentID: 10, SchoolID: 1}

	if err := CanCompletePass(Actor{UserID: 10, Role: model.RoleStudent, SchoolID: 1}, pass); err != nil {
		t.Fatalf("owner should complete: %v", err)
	}
	if err := CanCompletePass(Actor{UserID: 11, Role: model.RoleStudent, SchoolID: 1}, pass); err == nil {
		t.Fatal("another student should not complete")
	}
	if err := CanCompletePass(Actor{UserID: 20, Role: model.RoleTeacher, SchoolID: 1}, pass); err != nil {
		t.Fatalf("same-school staff should complete: %v", err)
	}
	if err := CanCompletePass(Actor{UserID: 21, Role: model.RoleAdmin, SchoolID: 2}, pass); err == nil {
		t.Fatal("staff from another school should not complete")
	}
}

func TestCanDecidePass(t *testing.T) {
	pass := model.Pass{StudentID: 10, SchoolID: 1}

	if err := CanDecidePass(Actor{UserID: 20, Role: model.RoleTeacher, SchoolID: 1}, pass); err != nil {
		t.Fatalf("teacher should decide: %v", err)
	}
	if err := CanDecidePass(Actor{UserID: 10, Role: model.RoleStudent, SchoolID: 1}, pass); err == nil {
		t.Fatal("student should not decide")
	}
	if err := CanDecidePass(Actor{UserID: 22, Role: model.RoleTeacher, SchoolID: 2}, pass); err == nil {
		t.Fatal("cross-school decision should be denied")
	}
}

func TestCanIssuePassTo(t *testing.T) {
	teacher := Actor{UserID: 20, Role: model.RoleTeacher, SchoolID: 1}

	student := model.User{ID: 10, Role: model.RoleStudent, SchoolID: 1, IsActive: true}
	if err := CanIssuePassTo(teacher, student); err != nil {
		t.Fatalf("teacher should issue to own student: %v", err)
	}

	var nf *NotFoundError
	otherSchool := model.User{ID: 11, Role: model.RoleStudent, SchoolID: 2}
	if err := CanIssuePassTo(teacher, otherSchool); !errors.As(err, &nf) {
		t.Fatalf("cross-school target should read as not-found, got %v", err)
	}
	notAStudent := model.User{ID: 12, Role: model.RoleTeacher, SchoolID: 1}
	if err := CanIssuePassTo(teacher, notAStudent); !errors.As(err, &nf) {
		t.Fatalf("non-student target should read as not-found, got %v", err)
	}

	studentActor := Actor{UserID: 10, Role: model.RoleStudent, SchoolID: 1}
	var authz *AuthorizationError
	if err := CanIssuePassTo(studentActor, student); !errors.As(err, &authz) {
		t.Fatalf("student issuing should be an authorization error, got %v", err)
	}
}
