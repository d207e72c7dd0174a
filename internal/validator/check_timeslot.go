package validator

import (
	"context"
	"fmt"
	"time"

	"examcore/pkg/domain"
)

// Institutional scheduling policy bounds.
const (
	earliestStartHour = 8
	latestEndHour     = 18
	maxExamDuration   = 4 * time.Hour
)

// timeSlotCheck enforces the institutional time-slot policy: weekday sessions,
// daytime hours, bounded duration.
type timeSlotCheck struct{}

func (timeSlotCheck) Name() string { return "time_slot" }

func (timeSlotCheck) Evaluate(_ context.Context, _ domain.Gateway, in Input) ([]domain.Violation, error) {
	var out []domain.Violation
	seq := 0
	for _, session := range in.Sessions {
		weekday := session.StartsAt.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			out = append(out, domain.Violation{
				ID:       violationID("time_slot", in.Exam.ID, seq),
				Type:     domain.ViolationTimeConflict,
				Severity: domain.SeverityHigh,
				Description: fmt.Sprintf("session %s falls on %s; exams run Monday–Friday",
					session.ID, weekday),
				AffectedEntities:    []string{session.ID},
				SuggestedResolution: "reschedule to a weekday",
			})
			seq++
		}

		startMin := session.StartsAt.Hour()*60 + session.StartsAt.Minute()
		endMin := session.EndsAt.Hour()*60 + session.EndsAt.Minute()
		if startMin < earliestStartHour*60 || endMin > latestEndHour*60 {
			out = append(out, domain.Violation{
				ID:       violationID("time_slot", in.Exam.ID, seq),
				Type:     domain.ViolationTimeConflict,
				Severity: domain.SeverityMedium,
				Description: fmt.Sprintf("session %s (%s–%s) is outside the 08:00–18:00 window",
					session.ID, session.StartsAt.Format("15:04"), session.EndsAt.Format("15:04")),
				AffectedEntities: []string{session.ID},
			})
			seq++
		}

		if session.Duration() > maxExamDuration {
			out = append(out, domain.Violation{
				ID:       violationID("time_slot", in.Exam.ID, seq),
				Type:     domain.ViolationTimeConflict,
				Severity: domain.SeverityMedium,
				Description: fmt.Sprintf("session %s runs %s, exceeding the 4 hour limit",
					session.ID, session.Duration()),
				AffectedEntities: []string{session.ID},
			})
			seq++
		}
	}
	return out, nil
}
