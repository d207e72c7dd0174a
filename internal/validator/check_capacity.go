package validator

import (
	"context"
	"fmt"
	"math"

	"examcore/pkg/domain"
)

// capacityCheck compares registration counts against each allocated room's capacity.
type capacityCheck struct{}

func (capacityCheck) Name() string { return "capacity" }

func (capacityCheck) Evaluate(ctx context.Context, gw domain.Gateway, in Input) ([]domain.Violation, error) {
	registrations, err := gw.ListRegistrationsByExam(ctx, in.Exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	registered := 0
	for _, reg := range registrations {
		if reg.Status != domain.RegistrationCancelled {
			registered++
		}
	}

	var out []domain.Violation
	seq := 0
	for _, session := range in.Sessions {
		if session.RoomID == nil {
			continue
		}
		room, err := gw.GetRoom(ctx, *session.RoomID)
		if err != nil {
			return nil, fmt.Errorf("get room %s: %w", *session.RoomID, err)
		}
		if room.Capacity <= 0 {
			continue
		}
		switch {
		case registered > room.Capacity:
			out = append(out, domain.Violation{
				ID:       violationID("capacity", in.Exam.ID, seq),
				Type:     domain.ViolationResourceConflict,
				Severity: domain.SeverityCritical,
				Description: fmt.Sprintf("room %s seats %d but %d students are registered",
					room.Name, room.Capacity, registered),
				AffectedEntities:    []string{session.ID, room.ID},
				SuggestedResolution: "split the session or allocate a larger room",
			})
			seq++
		case registered >= int(math.Ceil(float64(room.Capacity)*0.9)):
			out = append(out, domain.Violation{
				ID:       violationID("capacity", in.Exam.ID, seq),
				Type:     domain.ViolationResourceConflict,
				Severity: domain.SeverityMedium,
				Description: fmt.Sprintf("room %s is at %d/%d capacity (≥90%% utilization)",
					room.Name, registered, room.Capacity),
				AffectedEntities: []string{session.ID, room.ID},
			})
			seq++
		}
	}
	return out, nil
}
