package eligibility

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"examcore/internal/infra/persistence/memory"
	"examcore/pkg/domain"
)

// seedGrade records a prior-year grade, the shape prerequisite passes take.
func seedGrade(store *memory.Store, id, studentID, subjectID string, value float64, published bool) {
	store.SeedGrade(domain.Grade{
		Base:           domain.Base{ID: id},
		StudentID:      studentID,
		SubjectID:      subjectID,
		AcademicYearID: "ay-2025",
		Value:          value,
		Scale:          20,
		Published:      published,
		RecordedAt:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	})
}

// advancedFixture seeds MATH301 with prerequisites MATH101 and MATH201.
func advancedFixture() (*memory.Store, domain.Exam) {
	store := memory.NewStore()
	store.SeedSubject(domain.Subject{Base: domain.Base{ID: "sub-101"}, Code: "MATH101", ProgramID: "prog-sci"})
	store.SeedSubject(domain.Subject{Base: domain.Base{ID: "sub-201"}, Code: "MATH201", ProgramID: "prog-sci"})
	store.SeedSubject(domain.Subject{
		Base:            domain.Base{ID: "sub-301"},
		Code:            "MATH301",
		ProgramID:       "prog-sci",
		PrerequisiteIDs: []string{"sub-101", "sub-201"},
	})
	exam := store.SeedExam(domain.Exam{
		Base:             domain.Base{ID: "exam-301"},
		SubjectID:        "sub-301",
		ProgramID:        "prog-sci",
		AcademicYearID:   "ay-2026",
		Type:             domain.ExamWritten,
		LevelRequirement: 3,
	})
	return store, exam
}

func TestCheckOneLevelRequirementShortCircuits(t *testing.T) {
	store, exam := advancedFixture()
	// Fails both level and prerequisites; only the level reason may surface.
	student := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-1"}, ProgramID: "prog-sci", YearLevel: 2})

	r := New(store)
	result, err := r.CheckOne(context.Background(), student, exam)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Eligible {
		t.Fatalf("expected ineligible")
	}
	if !strings.Contains(result.Reason, "year level") {
		t.Fatalf("expected level reason, got %q", result.Reason)
	}
	if strings.Contains(result.Reason, "MATH") {
		t.Fatalf("later checks leaked into the reason: %q", result.Reason)
	}
}

func TestCheckOneNamesFailingPrerequisites(t *testing.T) {
	store, exam := advancedFixture()
	student := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-1"}, ProgramID: "prog-sci", YearLevel: 3})
	seedGrade(store, "g-101", student.ID, "sub-101", 14, true)
	seedGrade(store, "g-201", student.ID, "sub-201", 7, true)

	r := New(store)
	result, err := r.CheckOne(context.Background(), student, exam)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Eligible {
		t.Fatalf("expected ineligible")
	}
	if !strings.Contains(result.Reason, "MATH201") || strings.Contains(result.Reason, "MATH101") {
		t.Fatalf("reason should name only the failed prerequisite: %q", result.Reason)
	}
}

func TestCheckOneMinGrade(t *testing.T) {
	store, exam := advancedFixture()
	exam.MinGrade = 12
	student := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-1"}, ProgramID: "prog-sci", YearLevel: 3})
	seedGrade(store, "g-101", student.ID, "sub-101", 14, true)
	seedGrade(store, "g-201", student.ID, "sub-201", 13, true)

	r := New(store)

	// No grade at all in the exam subject.
	result, err := r.CheckOne(context.Background(), student, exam)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Eligible || !strings.Contains(result.Reason, "no published grade") {
		t.Fatalf("expected missing-grade reason, got %+v", result)
	}

	// Below the threshold.
	store.SeedGrade(domain.Grade{
		Base:           domain.Base{ID: "g-301"},
		StudentID:      student.ID,
		SubjectID:      "sub-301",
		AcademicYearID: exam.AcademicYearID,
		Value:          11,
		Scale:          20,
		Published:      true,
		RecordedAt:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	result, err = r.CheckOne(context.Background(), student, exam)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Eligible || !strings.Contains(result.Reason, "below the required minimum") {
		t.Fatalf("expected min-grade reason, got %+v", result)
	}
}

func TestCheckOneMinGradeScopedToAcademicYear(t *testing.T) {
	store, exam := advancedFixture()
	exam.MinGrade = 12
	student := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-1"}, ProgramID: "prog-sci", YearLevel: 3})
	seedGrade(store, "g-101", student.ID, "sub-101", 14, true)
	seedGrade(store, "g-201", student.ID, "sub-201", 13, true)
	// A newer, passing grade from another year must not satisfy the check.
	store.SeedGrade(domain.Grade{
		Base:           domain.Base{ID: "g-301-old"},
		StudentID:      student.ID,
		SubjectID:      "sub-301",
		AcademicYearID: "ay-2025",
		Value:          15,
		Scale:          20,
		Published:      true,
		RecordedAt:     time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	})

	r := New(store)
	result, err := r.CheckOne(context.Background(), student, exam)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Eligible || !strings.Contains(result.Reason, "no published grade") {
		t.Fatalf("out-of-year grade should not count, got %+v", result)
	}

	// The exam-year grade decides, even with the higher grade on file.
	store.SeedGrade(domain.Grade{
		Base:           domain.Base{ID: "g-301-now"},
		StudentID:      student.ID,
		SubjectID:      "sub-301",
		AcademicYearID: exam.AcademicYearID,
		Value:          8,
		Scale:          20,
		Published:      true,
		RecordedAt:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	result, err = r.CheckOne(context.Background(), student, exam)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Eligible || !strings.Contains(result.Reason, "below the required minimum") {
		t.Fatalf("expected exam-year grade to decide, got %+v", result)
	}
}

func TestCheckOneAttendance(t *testing.T) {
	store, exam := advancedFixture()
	exam.MinAttendanceRate = 0.75
	student := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-1"}, ProgramID: "prog-sci", YearLevel: 3})
	seedGrade(store, "g-101", student.ID, "sub-101", 14, true)
	seedGrade(store, "g-201", student.ID, "sub-201", 13, true)

	r := New(store)

	// No records counts as full attendance.
	result, err := r.CheckOne(context.Background(), student, exam)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.Eligible {
		t.Fatalf("expected eligible with no attendance records, got %+v", result)
	}

	// Two of four sessions attended is 50%.
	for i, present := range []bool{true, true, false, false} {
		store.SeedAttendance(domain.AttendanceRecord{
			Base:           domain.Base{ID: string(rune('a' + i))},
			StudentID:      student.ID,
			SubjectID:      "sub-301",
			AcademicYearID: "ay-2026",
			Present:        present,
			Date:           time.Date(2026, 1, 5+i, 0, 0, 0, 0, time.UTC),
		})
	}
	result, err = r.CheckOne(context.Background(), student, exam)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Eligible || !strings.Contains(result.Reason, "attendance 50%") {
		t.Fatalf("expected attendance reason, got %+v", result)
	}
}

func TestCheckOneAlreadyRegistered(t *testing.T) {
	store, exam := advancedFixture()
	student := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-1"}, ProgramID: "prog-sci", YearLevel: 3})
	seedGrade(store, "g-101", student.ID, "sub-101", 14, true)
	seedGrade(store, "g-201", student.ID, "sub-201", 13, true)
	store.SeedRegistration(domain.Registration{
		Base:      domain.Base{ID: "reg-1"},
		ExamID:    exam.ID,
		StudentID: student.ID,
		Status:    domain.RegistrationRegistered,
	})

	r := New(store)
	result, err := r.CheckOne(context.Background(), student, exam)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Eligible || !strings.Contains(result.Reason, "already registered") {
		t.Fatalf("expected registration reason, got %+v", result)
	}
}

func TestFindEligiblePartitionsProgram(t *testing.T) {
	store, exam := advancedFixture()
	pass := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-pass"}, ProgramID: "prog-sci", YearLevel: 3})
	seedGrade(store, "g-p101", pass.ID, "sub-101", 14, true)
	seedGrade(store, "g-p201", pass.ID, "sub-201", 13, true)
	store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-young"}, ProgramID: "prog-sci", YearLevel: 1})
	store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-other"}, ProgramID: "prog-arts", YearLevel: 3})

	r := New(store)
	eligible, ineligible, err := r.FindEligible(context.Background(), exam)
	if err != nil {
		t.Fatalf("find eligible: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != "st-pass" {
		t.Fatalf("eligible = %+v", eligible)
	}
	if len(ineligible) != 1 || ineligible[0].StudentID != "st-young" {
		t.Fatalf("ineligible = %+v", ineligible)
	}
}

func TestAutoEnrollFirstMatchingRuleWins(t *testing.T) {
	store, exam := advancedFixture()
	student := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-1"}, ProgramID: "prog-sci", YearLevel: 3})

	rules := []domain.EnrollmentRule{
		{ID: "rule-disabled", Enabled: false, Conditions: domain.EnrollmentConditions{ProgramID: "prog-sci"}},
		{ID: "rule-other", Enabled: true, Conditions: domain.EnrollmentConditions{ProgramID: "prog-arts"}},
		{ID: "rule-approve", Enabled: true, RequiresApproval: true, Conditions: domain.EnrollmentConditions{ProgramID: "prog-sci"}},
		{ID: "rule-open", Enabled: true},
	}
	r := New(store, WithEnrollmentRules(rules))

	regs, err := r.AutoEnroll(context.Background(), exam, []domain.Student{student})
	if err != nil {
		t.Fatalf("auto enroll: %v", err)
	}
	if len(regs) != 1 {
		t.Fatalf("expected 1 registration, got %+v", regs)
	}
	if regs[0].Status != domain.RegistrationPendingApproval {
		t.Fatalf("expected pending_approval from rule-approve, got %s", regs[0].Status)
	}
}

func TestAutoEnrollNoMatchingRule(t *testing.T) {
	store, exam := advancedFixture()
	student := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-1"}, ProgramID: "prog-sci", YearLevel: 3})

	r := New(store, WithEnrollmentRules([]domain.EnrollmentRule{
		{ID: "rule-other", Enabled: true, Conditions: domain.EnrollmentConditions{ProgramID: "prog-arts"}},
	}))
	regs, err := r.AutoEnroll(context.Background(), exam, []domain.Student{student})
	if err != nil {
		t.Fatalf("auto enroll: %v", err)
	}
	if len(regs) != 0 {
		t.Fatalf("expected no registrations, got %+v", regs)
	}
}

func TestEnrollRechecksEligibility(t *testing.T) {
	store, exam := advancedFixture()
	store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-young"}, ProgramID: "prog-sci", YearLevel: 1})
	pass := store.SeedStudent(domain.Student{Base: domain.Base{ID: "st-pass"}, ProgramID: "prog-sci", YearLevel: 3})
	seedGrade(store, "g-101", pass.ID, "sub-101", 14, true)
	seedGrade(store, "g-201", pass.ID, "sub-201", 13, true)

	r := New(store)
	ctx := context.Background()

	if _, err := r.Enroll(ctx, exam, "st-young"); !errors.Is(err, ErrIneligible) {
		t.Fatalf("expected ErrIneligible, got %v", err)
	}

	reg, err := r.Enroll(ctx, exam, "st-pass")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if reg.Status != domain.RegistrationRegistered {
		t.Fatalf("expected registered, got %s", reg.Status)
	}
	if _, err := store.FindRegistration(ctx, exam.ID, "st-pass"); err != nil {
		t.Fatalf("registration not persisted: %v", err)
	}
}
