package validator

import (
	"context"
	"errors"
	"fmt"

	"examcore/pkg/domain"
)

// passingGrade is the normalized threshold on the canonical 0–20 scale.
const passingGrade = 10.0

// prerequisiteCheck verifies every registered student has passed the subject's
// declared prerequisites.
type prerequisiteCheck struct{}

func (prerequisiteCheck) Name() string { return "prerequisites" }

func (prerequisiteCheck) Evaluate(ctx context.Context, gw domain.Gateway, in Input) ([]domain.Violation, error) {
	subject, err := gw.GetSubject(ctx, in.Exam.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("get subject %s: %w", in.Exam.SubjectID, err)
	}
	if len(subject.PrerequisiteIDs) == 0 {
		return nil, nil
	}

	registrations, err := gw.ListRegistrationsByExam(ctx, in.Exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	if len(registrations) == 0 {
		return nil, nil
	}

	var out []domain.Violation
	seq := 0
	for _, prereqID := range subject.PrerequisiteIDs {
		prereq, err := gw.GetSubject(ctx, prereqID)
		if err != nil {
			return nil, fmt.Errorf("get prerequisite %s: %w", prereqID, err)
		}

		var missing []string
		for _, reg := range registrations {
			passed, err := hasPassedSubject(ctx, gw, reg.StudentID, prereqID)
			if err != nil {
				return nil, err
			}
			if !passed {
				missing = append(missing, reg.StudentID)
			}
		}
		if len(missing) == 0 {
			continue
		}

		severity := domain.SeverityMedium
		if len(missing)*2 > len(registrations) {
			severity = domain.SeverityHigh
		}
		out = append(out, domain.Violation{
			ID:       violationID("prerequisites", in.Exam.ID, seq),
			Type:     domain.ViolationStudentOverlap,
			Severity: severity,
			Description: fmt.Sprintf("%d of %d registered students have not passed prerequisite %s",
				len(missing), len(registrations), prereq.Code),
			AffectedEntities:    append([]string{prereqID}, missing...),
			SuggestedResolution: "review the registrations of the listed students",
		})
		seq++
	}
	return out, nil
}

// hasPassedSubject reports whether the student's most recent published grade in
// the subject normalizes to a pass. Missing grades count as not passed. A pass
// from any academic year counts; prerequisites are earned in earlier years.
func hasPassedSubject(ctx context.Context, gw domain.Gateway, studentID, subjectID string) (bool, error) {
	grades, err := gw.ListGrades(ctx, studentID, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("list grades for %s: %w", studentID, err)
	}
	for _, g := range grades {
		if !g.Published {
			continue
		}
		return g.Normalized() >= passingGrade, nil
	}
	return false, nil
}
