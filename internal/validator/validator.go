// Package validator evaluates an exam and its sessions against the academic,
// temporal, and capacity constraint families. Validation is side-effect free
// and fail-soft: infrastructure failures degrade to critical violations
// instead of propagating to the caller.
package validator

import (
	"context"
	"fmt"

	"examcore/internal/observe"
	"examcore/pkg/domain"
)

// Input bundles the exam under validation with its sessions.
type Input struct {
	Exam     domain.Exam
	Sessions []domain.ExamSession
}

// Check evaluates one constraint family. Checks are side-effect free; a
// returned error marks an infrastructure failure, never a business violation.
type Check interface {
	Name() string
	Evaluate(ctx context.Context, gw domain.Gateway, in Input) ([]domain.Violation, error)
}

// Validator runs an ordered set of checks and concatenates their violations.
// The fixed order keeps output deterministic for identical input state.
type Validator struct {
	gw     domain.Gateway
	checks []Check
	logger observe.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger installs a logger for degraded-check reporting.
func WithLogger(logger observe.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithChecks replaces the default check set. Intended for tests.
func WithChecks(checks ...Check) Option {
	return func(v *Validator) {
		v.checks = checks
	}
}

// New constructs a validator with the built-in constraint set in its canonical
// order: timetable, program, prerequisites, capacity, room compatibility,
// time-slot policy.
func New(gw domain.Gateway, opts ...Option) *Validator {
	v := &Validator{
		gw: gw,
		checks: []Check{
			timetableCheck{},
			programCheck{},
			prerequisiteCheck{},
			capacityCheck{},
			roomTypeCheck{},
			timeSlotCheck{},
		},
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every check in order. A check whose lookups fail contributes a
// single critical resource_conflict violation describing the failure and does
// not abort the remaining checks.
func (v *Validator) Validate(ctx context.Context, exam domain.Exam, sessions []domain.ExamSession) []domain.Violation {
	in := Input{Exam: exam, Sessions: sessions}
	var out []domain.Violation
	for _, check := range v.checks {
		violations, err := check.Evaluate(ctx, v.gw, in)
		if err != nil {
			v.logger.Warn("constraint check degraded", "check", check.Name(), "exam", exam.ID, "error", err)
			out = append(out, domain.Violation{
				ID:               fmt.Sprintf("%s-%s-degraded", check.Name(), exam.ID),
				Type:             domain.ViolationResourceConflict,
				Severity:         domain.SeverityCritical,
				Description:      fmt.Sprintf("%s check could not complete: %v", check.Name(), err),
				AffectedEntities: []string{exam.ID},
			})
			continue
		}
		out = append(out, violations...)
	}
	return out
}

// violationID builds a deterministic identifier so repeated validation runs on
// unchanged state produce identical sets.
func violationID(check, examID string, seq int) string {
	return fmt.Sprintf("%s-%s-%d", check, examID, seq)
}
