package validator

import (
	"context"
	"fmt"

	"examcore/pkg/domain"
)

// roomTypeCheck verifies each allocated room can host the exam type and
// carries the equipment that type requires.
type roomTypeCheck struct{}

func (roomTypeCheck) Name() string { return "room_compatibility" }

func (roomTypeCheck) Evaluate(ctx context.Context, gw domain.Gateway, in Input) ([]domain.Violation, error) {
	want := domain.RequiredRoomType(in.Exam.Type)
	required := domain.RequiredEquipmentTypes(in.Exam.Type)

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

		if !domain.RoomTypeCompatible(want, room.Type) {
			out = append(out, domain.Violation{
				ID:       violationID("room_compatibility", in.Exam.ID, seq),
				Type:     domain.ViolationResourceConflict,
				Severity: domain.SeverityHigh,
				Description: fmt.Sprintf("%s exam requires a %s room but session %s is placed in %s (%s)",
					in.Exam.Type, want, session.ID, room.Name, room.Type),
				AffectedEntities:    []string{session.ID, room.ID},
				SuggestedResolution: fmt.Sprintf("move the session to a %s room", want),
			})
			seq++
		}

		for _, equipType := range required {
			if room.HasEquipment(equipType, 1) {
				continue
			}
			out = append(out, domain.Violation{
				ID:       violationID("room_compatibility", in.Exam.ID, seq),
				Type:     domain.ViolationResourceConflict,
				Severity: domain.SeverityMedium,
				Description: fmt.Sprintf("room %s lacks %s required for a %s exam",
					room.Name, equipType, in.Exam.Type),
				AffectedEntities:    []string{session.ID, room.ID},
				SuggestedResolution: fmt.Sprintf("provision %s or relocate the session", equipType),
			})
			seq++
		}
	}
	return out, nil
}
