package domain

// EligibilityResult is the outcome of evaluating one student against one exam.
// The checks short-circuit: Reason names only the first failing rule.
type EligibilityResult struct {
	StudentID string `json:"student_id"`
	Eligible  bool   `json:"eligible"`
	Reason    string `json:"reason,omitempty"`
}

// EnrollmentConditions scope an enrollment rule to matching exams. Zero values
// are wildcards.
type EnrollmentConditions struct {
	ProgramID string `json:"program_id,omitempty"`
	Semester  int    `json:"semester,omitempty"`
}

// EnrollmentRule drives auto-enrollment of eligible students. Rules are
// evaluated in caller-configured list order; the first enabled rule whose
// conditions match the exam wins. Priority is carried for display but does not
// participate in selection.
type EnrollmentRule struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Enabled          bool                 `json:"enabled"`
	Priority         int                  `json:"priority"`
	RequiresApproval bool                 `json:"requires_approval"`
	Conditions       EnrollmentConditions `json:"conditions"`
}

// Matches reports whether the rule applies to the exam.
func (r EnrollmentRule) Matches(exam Exam) bool {
	if !r.Enabled {
		return false
	}
	if r.Conditions.ProgramID != "" && r.Conditions.ProgramID != exam.ProgramID {
		return false
	}
	if r.Conditions.Semester != 0 && r.Conditions.Semester != exam.Semester {
		return false
	}
	return true
}
