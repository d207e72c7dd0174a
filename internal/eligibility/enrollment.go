package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"examcore/pkg/domain"
)

// ErrIneligible is returned by manual enrollment when the student fails the
// eligibility checks. The wrapped message carries the blocking reason.
var ErrIneligible = errors.New("student is not eligible")

// matchRule returns the first enabled rule whose conditions match the exam.
func (r *Resolver) matchRule(exam domain.Exam) (domain.EnrollmentRule, bool) {
	for _, rule := range r.rules {
		if rule.Matches(exam) {
			return rule, true
		}
	}
	return domain.EnrollmentRule{}, false
}

// AutoEnroll registers the given eligible students according to the first
// matching enrollment rule. Without a matching rule no one is enrolled.
func (r *Resolver) AutoEnroll(ctx context.Context, exam domain.Exam, eligible []domain.Student) ([]domain.Registration, error) {
	rule, ok := r.matchRule(exam)
	if !ok {
		r.logger.Debug("no enrollment rule matches exam", "exam", exam.ID)
		return nil, nil
	}

	status := domain.RegistrationRegistered
	if rule.RequiresApproval {
		status = domain.RegistrationPendingApproval
	}

	registrations := make([]domain.Registration, 0, len(eligible))
	for _, student := range eligible {
		reg, err := r.gw.InsertRegistration(ctx, domain.Registration{
			Base:      domain.Base{ID: uuid.NewString()},
			ExamID:    exam.ID,
			StudentID: student.ID,
			Status:    status,
		})
		if err != nil {
			return registrations, fmt.Errorf("enroll student %s: %w", student.ID, err)
		}
		registrations = append(registrations, reg)
	}
	r.logger.Info("auto-enrollment applied", "exam", exam.ID, "rule", rule.ID, "enrolled", len(registrations), "status", string(status))
	return registrations, nil
}

// Enroll registers a single student after re-running the eligibility checks.
// An ineligible student yields ErrIneligible wrapped with the blocking reason.
func (r *Resolver) Enroll(ctx context.Context, exam domain.Exam, studentID string) (domain.Registration, error) {
	student, err := r.gw.GetStudent(ctx, studentID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("get student %s: %w", studentID, err)
	}
	result, err := r.CheckOne(ctx, student, exam)
	if err != nil {
		return domain.Registration{}, err
	}
	if !result.Eligible {
		return domain.Registration{}, fmt.Errorf("%w: %s", ErrIneligible, result.Reason)
	}

	status := domain.RegistrationRegistered
	if rule, ok := r.matchRule(exam); ok && rule.RequiresApproval {
		status = domain.RegistrationPendingApproval
	}
	return r.gw.InsertRegistration(ctx, domain.Registration{
		Base:      domain.Base{ID: uuid.NewString()},
		ExamID:    exam.ID,
		StudentID: studentID,
		Status:    status,
	})
}
