package validator

import (
	"context"
	"fmt"

	"examcore/pkg/domain"
)

// timetableCheck detects overlapping occupation of a session's room, both by
// other scheduled exam sessions and by the recurring teaching timetable.
type timetableCheck struct{}

func (timetableCheck) Name() string { return "timetable" }

func (timetableCheck) Evaluate(ctx context.Context, gw domain.Gateway, in Input) ([]domain.Violation, error) {
	var out []domain.Violation
	seq := 0
	for _, session := range in.Sessions {
		if session.RoomID == nil {
			continue
		}
		roomID := *session.RoomID

		others, err := gw.ListRoomSessions(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("list room sessions: %w", err)
		}
		for _, other := range others {
			if other.ID == session.ID || other.Status != domain.SessionStatusScheduled {
				continue
			}
			if other.StartsAt.Weekday() != session.StartsAt.Weekday() {
				continue
			}
			if !domain.Overlaps(session.StartsAt, session.EndsAt, other.StartsAt, other.EndsAt) {
				continue
			}
			out = append(out, domain.Violation{
				ID:       violationID("timetable", in.Exam.ID, seq),
				Type:     domain.ViolationTimeConflict,
				Severity: domain.SeverityCritical,
				Description: fmt.Sprintf("session %s overlaps session %s in room %s (%s %s–%s)",
					session.ID, other.ID, roomID, session.StartsAt.Weekday(),
					session.StartsAt.Format("15:04"), session.EndsAt.Format("15:04")),
				AffectedEntities:    []string{session.ID, other.ID, roomID},
				SuggestedResolution: "move one session to a free room or time slot",
			})
			seq++
		}

		slots, err := gw.ListRoomTimetable(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("list room timetable: %w", err)
		}
		startMin := session.StartsAt.Hour()*60 + session.StartsAt.Minute()
		endMin := session.EndsAt.Hour()*60 + session.EndsAt.Minute()
		for _, slot := range slots {
			if slot.Weekday != session.StartsAt.Weekday() {
				continue
			}
			if startMin >= slot.EndMinute || slot.StartMinute >= endMin {
				continue
			}
			out = append(out, domain.Violation{
				ID:       violationID("timetable", in.Exam.ID, seq),
				Type:     domain.ViolationTimeConflict,
				Severity: domain.SeverityHigh,
				Description: fmt.Sprintf("session %s collides with the regular timetable in room %s (%s %02d:%02d–%02d:%02d)",
					session.ID, roomID, slot.Weekday,
					slot.StartMinute/60, slot.StartMinute%60, slot.EndMinute/60, slot.EndMinute%60),
				AffectedEntities:    []string{session.ID, roomID, slot.ID},
				SuggestedResolution: "schedule the exam outside regular teaching hours for this room",
			})
			seq++
		}
	}
	return out, nil
}
