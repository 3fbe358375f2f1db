package engine

import "github.com/schoolsecure/hallpass/internal/model"

// Capability names one thing an actor may be allowed to do. Capabilities
// are granted per role by the table below and never computed dynamically.
type Capability string

const (
	CapRequestPass     Capability = "pass:request"      // create a pass for yourself
	CapViewOwnPasses   Capability = "pass:view_own"     // read your own passes
	CapActivatePass    Capability = "pass:activate"     // start your own approved pass
	CapCompletePass    Capability = "pass:complete"     // finish a pass (own, or school-wide for staff)
	CapIssuePass       Capability = "pass:issue"        // create a pass for a student
	CapDecidePass      Capability = "pass:decide"       // approve or deny a pending pass
	CapViewSchoolPass  Capability = "pass:view_school"  // read any pass in the school
	CapVerifyCode      Capability = "pass:verify"       // look up a pass by verification code
	CapConfigureSchool Capability = "school:configure"  // change school settings
	CapManageLocations Capability = "school:locations"  // create/update/deactivate locations
	CapViewDashboard   Capability = "dashboard:view"    // read role-appropriate analytics
)

// capabilities is the closed role × capability policy table. The admin
// set is a strict superset of the teacher set; students hold only the
// self-service capabilities.
var capabilities = map[model.Role]map[Capability]bool{
	model.RoleStudent: {
		CapRequestPass:   true,
		CapViewOwnPasses: true,
		CapActivatePass:  true,
		CapCompletePass:  true,
		CapViewDashboard: true,
	},
	model.RoleTeacher: {
		CapIssuePass:      true,
		CapDecidePass:     true,
		CapViewSchoolPass: true,
		CapCompletePass:   true,
		CapVerifyCode:     true,
		CapViewDashboard:  true,
	},
	model.RoleAdmin: {
		CapIssuePass:       true,
		CapDecidePass:      true,
		CapViewSchoolPass:  true,
		CapCompletePass:    true,
		CapVerifyCode:      true,
		CapViewDashboard:   true,
		CapConfigureSchool: true,
		CapManageLocations: true,
	},
}

// Authorize answers whether the actor's role grants the capability.
// On denial it returns an *AuthorizationError carrying both the role and
// the missing capability, so the caller can explain what would have been
// needed instead of returning a bare rejection.
func Authorize(actor Actor, cap Capability) error {
	if capabilities[actor.Role][cap] {
		return nil
	}
	return &AuthorizationError{Role: actor.Role, Capability: cap}
}

// CanViewPass gates read access to a single pass: students see only their
// own, staff see any pass in their own school.
func CanViewPass(actor Actor, p model.Pass) error {
	if actor.Role == model.RoleStudent {
		if p.StudentID == actor.UserID {
			return nil
		}
		return &AuthorizationError{Role: actor.Role, Capability: CapViewSchoolPass}
	}
	if err := Authorize(actor, CapViewSchoolPass); err != nil {
		return err
	}
	if p.SchoolID != actor.SchoolID {
		return &AuthorizationError{Role: actor.Role, Capability: CapViewSchoolPass}
	}
	return nil
}

// CanDecidePass gates approve/deny: staff only, same school only.
func CanDecidePass(actor Actor, p model.Pass) error {
	if err := Authorize(actor, CapDecidePass); err != nil {
		return err
	}
	if p.SchoolID != actor.SchoolID {
		return &AuthorizationError{Role: actor.Role, Capability: CapDecidePass}
	}
	return nil
}

// CanActivatePass gates activation: only the student the pass belongs to
// may start it. Staff issue and approve passes; they do not walk the
// hallway on the student's behalf.
func CanActivatePass(actor Actor, p model.Pass) error {
	if err := Authorize(actor, CapActivatePass); err != nil {
		return err
	}
	if p.StudentID != actor.UserID {
		return &AuthorizationError{Role: actor.Role, Capability: CapActivatePass}
	}
	return nil
}

// CanCompletePass gates completion: the owning student, or any staff
// member of the same school (the front desk closing out a pass when the
// student walks back in).
func CanCompletePass(actor Actor, p model.Pass) error {
	if err := Authorize(actor, CapCompletePass); err != nil {
		return err
	}
	if actor.Role == model.RoleStudent {
		if p.StudentID == actor.UserID {
			return nil
		}
		return &AuthorizationError{Role: actor.Role, Capability: CapCompletePass}
	}
	if p.SchoolID != actor.SchoolID {
		return &AuthorizationError{Role: actor.Role, Capability: CapCompletePass}
	}
	return nil
}

// CanIssuePassTo gates staff issuance: staff only, and the target must be
// an active student of the same school. Anything else reads as an unknown
// student, including staff accounts and students of other schools.
func CanIssuePassTo(actor Actor, student model.User) error {
	if err := Authorize(actor, CapIssuePass); err != nil {
		return err
	}
	if student.Role != model.RoleStudent || student.SchoolID != actor.SchoolID || !student.IsActive {
		return &NotFoundError{Entity: "student"}
	}
	return nil
}
