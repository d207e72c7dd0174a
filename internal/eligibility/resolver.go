// Package eligibility decides which students may sit an exam and performs
// rule-driven enrollment. Checks run in a fixed order and short-circuit on the
// first failure, so the reported reason is always the earliest blocking rule.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"examcore/internal/observe"
	"examcore/pkg/domain"
)

// passingGrade is the prerequisite pass mark on the canonical 0–20 scale.
const passingGrade = 10.0

// Resolver evaluates exam eligibility through the gateway.
type Resolver struct {
	gw     domain.Gateway
	rules  []domain.EnrollmentRule
	logger observe.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger installs a logger.
func WithLogger(logger observe.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEnrollmentRules installs the ordered enrollment rule list. The first
// enabled rule whose conditions match an exam drives auto-enrollment.
func WithEnrollmentRules(rules []domain.EnrollmentRule) Option {
	return func(r *Resolver) {
		r.rules = rules
	}
}

// New constructs a Resolver over the gateway.
func New(gw domain.Gateway, opts ...Option) *Resolver {
	r := &Resolver{gw: gw, logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckOne evaluates one student against the exam's eligibility rules. Checks
// short-circuit in order: year level, prerequisites, minimum grade, minimum
// attendance, existing registration.
func (r *Resolver) CheckOne(ctx context.Context, student domain.Student, exam domain.Exam) (domain.EligibilityResult, error) {
	result := domain.EligibilityResult{StudentID: student.ID}

	if exam.LevelRequirement > 0 && student.YearLevel < exam.LevelRequirement {
		result.Reason = fmt.Sprintf("year level %d is below the required level %d", student.YearLevel, exam.LevelRequirement)
		return result, nil
	}

	failed, err := r.failedPrerequisites(ctx, student.ID, exam.SubjectID)
	if err != nil {
		return result, err
	}
	if len(failed) > 0 {
		result.Reason = fmt.Sprintf("prerequisites not passed: %s", strings.Join(failed, ", "))
		return result, nil
	}

	if exam.MinGrade > 0 {
		grade, ok, err := r.latestGrade(ctx, student.ID, exam.SubjectID, exam.AcademicYearID)
		if err != nil {
			return result, err
		}
		if !ok || grade < exam.MinGrade {
			if !ok {
				result.Reason = fmt.Sprintf("no published grade in the subject for the academic year; minimum %.1f required", exam.MinGrade)
			} else {
				result.Reason = fmt.Sprintf("grade %.1f is below the required minimum %.1f", grade, exam.MinGrade)
			}
			return result, nil
		}
	}

	if exam.MinAttendanceRate > 0 {
		rate, err := r.attendanceRate(ctx, student.ID, exam.SubjectID, exam.AcademicYearID)
		if err != nil {
			return result, err
		}
		if rate < exam.MinAttendanceRate {
			result.Reason = fmt.Sprintf("attendance %.0f%% is below the required %.0f%%", rate*100, exam.MinAttendanceRate*100)
			return result, nil
		}
	}

	_, err = r.gw.FindRegistration(ctx, exam.ID, student.ID)
	switch {
	case err == nil:
		result.Reason = "already registered for this exam"
		return result, nil
	case !errors.Is(err, domain.ErrNotFound):
		return result, fmt.Errorf("find registration: %w", err)
	}

	result.Eligible = true
	return result, nil
}

// FindEligible partitions the exam's program population into eligible and
// ineligible students.
func (r *Resolver) FindEligible(ctx context.Context, exam domain.Exam) ([]domain.Student, []domain.IneligibleStudent, error) {
	students, err := r.gw.ListStudentsByProgram(ctx, exam.ProgramID)
	if err != nil {
		return nil, nil, fmt.Errorf("list program students: %w", err)
	}

	var eligible []domain.Student
	var ineligible []domain.IneligibleStudent
	for _, student := range students {
		result, err := r.CheckOne(ctx, student, exam)
		if err != nil {
			return nil, nil, fmt.Errorf("check student %s: %w", student.ID, err)
		}
		if result.Eligible {
			eligible = append(eligible, student)
			continue
		}
		ineligible = append(ineligible, domain.IneligibleStudent{StudentID: student.ID, Reason: result.Reason})
	}
	return eligible, ineligible, nil
}

// failedPrerequisites returns the codes of the subject's prerequisites the
// student has not passed.
func (r *Resolver) failedPrerequisites(ctx context.Context, studentID, subjectID string) ([]string, error) {
	subject, err := r.gw.GetSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subject %s: %w", subjectID, err)
	}

	var failed []string
	for _, prereqID := range subject.PrerequisiteIDs {
		// Prerequisites are passed in earlier years, so no year filter here.
		grade, ok, err := r.latestGrade(ctx, studentID, prereqID, "")
		if err != nil {
			return nil, err
		}
		if ok && grade >= passingGrade {
			continue
		}
		prereq, err := r.gw.GetSubject(ctx, prereqID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				failed = append(failed, prereqID)
				continue
			}
			return nil, fmt.Errorf("get prerequisite %s: %w", prereqID, err)
		}
		failed = append(failed, prereq.Code)
	}
	return failed, nil
}

// latestGrade returns the normalized value of the student's most recent
// published grade in the subject. A non-empty academicYearID restricts the
// search to that year. ok is false when no published grade matches.
func (r *Resolver) latestGrade(ctx context.Context, studentID, subjectID, academicYearID string) (float64, bool, error) {
	grades, err := r.gw.ListGrades(ctx, studentID, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("list grades: %w", err)
	}
	for _, g := range grades {
		if !g.Published {
			continue
		}
		if academicYearID != "" && g.AcademicYearID != academicYearID {
			continue
		}
		return g.Normalized(), true, nil
	}
	return 0, false, nil
}

// attendanceRate computes the student's attendance ratio in the subject for
// the academic year. A student with no records is treated as fully attending.
func (r *Resolver) attendanceRate(ctx context.Context, studentID, subjectID, academicYearID string) (float64, error) {
	records, err := r.gw.ListAttendance(ctx, studentID, subjectID, academicYearID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 1, nil
		}
		return 0, fmt.Errorf("list attendance: %w", err)
	}
	if len(records) == 0 {
		return 1, nil
	}
	present := 0
	for _, rec := range records {
		if rec.Present {
			present++
		}
	}
	return float64(present) / float64(len(records)), nil
}
