package allocator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"examcore/pkg/domain"
)

// assignSupervisors commits available supervisors to the session window up to
// the exam's minimum. Supervisors already assigned to this session are counted
// without re-inserting, so repeated syncs are stable. A shortfall is recorded
// as a high-severity conflict on the session allocation.
func (a *Allocator) assignSupervisors(ctx context.Context, exam domain.Exam, session domain.ExamSession, alloc *domain.SessionAllocation) {
	requirement := domain.ResourceRequirement{
		Type:     domain.ResourceRoom,
		ID:       "supervision",
		Name:     "exam supervisors",
		Quantity: exam.MinSupervisors,
		Priority: domain.PriorityRequired,
		Specifications: map[string]any{
			"violation_type": string(domain.ViolationTeacherAvailability),
		},
	}

	supervisors, err := a.gw.ListAvailableSupervisors(ctx)
	if err != nil {
		alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
			Requirement: requirement,
			Reason:      fmt.Sprintf("supervisor roster could not be read: %v", err),
			Severity:    domain.SeverityCritical,
		})
		return
	}

	assigned := 0
	for _, supervisor := range supervisors {
		if assigned >= exam.MinSupervisors {
			break
		}
		assignments, err := a.gw.ListSupervisorAssignments(ctx, supervisor.ID)
		if err != nil {
			alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
				Requirement: requirement,
				Reason:      fmt.Sprintf("assignments of supervisor %s could not be read: %v", supervisor.ID, err),
				Severity:    domain.SeverityCritical,
			})
			return
		}

		// An existing assignment to this session always wins over a clash
		// with another window, so the full list is scanned before deciding.
		already := false
		busy := false
		for _, assignment := range assignments {
			if assignment.SessionID == session.ID {
				already = true
				break
			}
			if domain.Overlaps(session.StartsAt, session.EndsAt, assignment.StartsAt, assignment.EndsAt) {
				busy = true
			}
		}
		if already {
			assigned++
			continue
		}
		if busy {
			continue
		}

		if _, err := a.gw.InsertSupervisorAssignment(ctx, domain.SupervisorAssignment{
			Base:         domain.Base{ID: uuid.NewString()},
			SessionID:    session.ID,
			SupervisorID: supervisor.ID,
			StartsAt:     session.StartsAt,
			EndsAt:       session.EndsAt,
		}); err != nil {
			alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
				Requirement: requirement,
				Reason:      fmt.Sprintf("supervisor %s could not be committed: %v", supervisor.ID, err),
				Severity:    domain.SeverityCritical,
			})
			return
		}
		assigned++
	}

	if assigned < exam.MinSupervisors {
		alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
			Requirement: requirement,
			Reason: fmt.Sprintf("only %d of %d required supervisors are free during the session window",
				assigned, exam.MinSupervisors),
			Severity: domain.SeverityHigh,
		})
	}
}
