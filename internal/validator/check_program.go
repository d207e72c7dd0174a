package validator

import (
	"context"
	"fmt"

	"examcore/pkg/domain"
)

// programCheck verifies the exam's subject belongs to its program and that the
// exam is placed in the subject's assigned semester.
type programCheck struct{}

func (programCheck) Name() string { return "program" }

func (programCheck) Evaluate(ctx context.Context, gw domain.Gateway, in Input) ([]domain.Violation, error) {
	subject, err := gw.GetSubject(ctx, in.Exam.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("get subject %s: %w", in.Exam.SubjectID, err)
	}

	var out []domain.Violation
	seq := 0
	if subject.ProgramID != in.Exam.ProgramID {
		out = append(out, domain.Violation{
			ID:       violationID("program", in.Exam.ID, seq),
			Type:     domain.ViolationResourceConflict,
			Severity: domain.SeverityCritical,
			Description: fmt.Sprintf("subject %s belongs to program %s, not the exam's program %s",
				subject.Code, subject.ProgramID, in.Exam.ProgramID),
			AffectedEntities:    []string{in.Exam.ID, subject.ID},
			SuggestedResolution: "correct the exam's program or subject reference",
		})
		seq++
	}
	if subject.Semester != 0 && subject.Semester != in.Exam.Semester {
		out = append(out, domain.Violation{
			ID:       violationID("program", in.Exam.ID, seq),
			Type:     domain.ViolationResourceConflict,
			Severity: domain.SeverityMedium,
			Description: fmt.Sprintf("exam semester %d does not match subject %s semester %d",
				in.Exam.Semester, subject.Code, subject.Semester),
			AffectedEntities: []string{in.Exam.ID, subject.ID},
		})
	}
	return out, nil
}
