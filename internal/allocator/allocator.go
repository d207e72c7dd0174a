// Package allocator reserves rooms, equipment, and materials for exam
// sessions. Allocation is greedy and fail-soft: every requirement that cannot
// be satisfied becomes a recorded conflict, never an error returned to the
// caller.
package allocator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"examcore/internal/observe"
	"examcore/pkg/domain"
)

// Allocator allocates resources for exam sessions through the gateway.
// Allocation for one session is serialized by a keyed lock so concurrent syncs
// of the same exam cannot double-book during the read-then-reserve window.
type Allocator struct {
	gw     domain.Gateway
	logger observe.Logger
	locks  sync.Map // session ID -> *sync.Mutex
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger installs a logger for degraded-lookup reporting.
func WithLogger(logger observe.Logger) Option {
	return func(a *Allocator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New constructs an Allocator over the gateway.
func New(gw domain.Gateway, opts ...Option) *Allocator {
	a := &Allocator{gw: gw, logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate derives the exam's requirements and allocates them for each
// session, returning per-session outcomes and the folded availability status.
func (a *Allocator) Allocate(ctx context.Context, exam domain.Exam, sessions []domain.ExamSession) ([]domain.SessionAllocation, domain.AvailabilityStatus) {
	registered := 0
	if regs, err := a.gw.ListRegistrationsByExam(ctx, exam.ID); err != nil {
		a.logger.Warn("registration count unavailable, sizing from max students", "exam", exam.ID, "error", err)
	} else {
		for _, reg := range regs {
			if reg.Status != domain.RegistrationCancelled {
				registered++
			}
		}
	}
	requirements := DeriveRequirements(exam, registered)

	allocations := make([]domain.SessionAllocation, 0, len(sessions))
	for _, session := range sessions {
		allocations = append(allocations, a.allocateSession(ctx, exam, session, requirements))
	}
	return allocations, domain.DeriveAvailability(allocations)
}

func (a *Allocator) lockSession(id string) func() {
	v, _ := a.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (a *Allocator) allocateSession(ctx context.Context, exam domain.Exam, session domain.ExamSession, requirements []domain.ResourceRequirement) domain.SessionAllocation {
	unlock := a.lockSession(session.ID)
	defer unlock()

	alloc := domain.SessionAllocation{SessionID: session.ID}

	existing, err := a.gw.ListReservationsBySession(ctx, session.ID)
	if err != nil {
		a.logger.Warn("reservation lookup failed", "session", session.ID, "error", err)
		for _, req := range requirements {
			alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
				Requirement: req,
				Reason:      fmt.Sprintf("existing reservations could not be read: %v", err),
				Severity:    domain.SeverityCritical,
			})
		}
		alloc.DeriveStatus()
		return alloc
	}

	usedRooms := make(map[string]bool)
	for _, req := range requirements {
		switch req.Type {
		case domain.ResourceRoom:
			a.allocateRoom(ctx, &session, req, existing, usedRooms, &alloc)
		case domain.ResourceEquipment:
			a.allocateEquipment(ctx, session, req, existing, &alloc)
		case domain.ResourceMaterial:
			a.allocateMaterial(ctx, session, req, existing, &alloc)
		}
	}

	if exam.MinSupervisors > 0 {
		a.assignSupervisors(ctx, exam, session, &alloc)
	}

	for _, res := range alloc.AllocatedResources {
		alloc.CostEstimate += res.Cost
	}
	alloc.DeriveStatus()
	return alloc
}

// allocateRoom walks candidate rooms cheapest-fit first and commits the first
// one free for the session window. The first batch's room is written onto the
// session record; further batches only hold reservations.
func (a *Allocator) allocateRoom(ctx context.Context, session *domain.ExamSession, req domain.ResourceRequirement, existing []domain.Reservation, usedRooms map[string]bool, alloc *domain.SessionAllocation) {
	// Re-sync guard: a prior run's room reservation satisfies the batch as-is.
	for _, res := range existing {
		if res.ResourceType != domain.ResourceRoom || usedRooms[res.ResourceID] {
			continue
		}
		usedRooms[res.ResourceID] = true
		alloc.AllocatedResources = append(alloc.AllocatedResources, domain.AllocatedResource{
			Type:       domain.ResourceRoom,
			ResourceID: res.ResourceID,
			Name:       req.Name,
			Quantity:   1,
			Cost:       res.Cost,
		})
		return
	}

	roomType := domain.RequiredRoomType(domain.ExamType(stringSpec(req, "exam_type")))
	candidates, err := a.gw.ListAvailableRooms(ctx, roomType, minCapacity(req))
	if err != nil {
		alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
			Requirement: req,
			Reason:      fmt.Sprintf("room search failed: %v", err),
			Severity:    domain.SeverityCritical,
		})
		return
	}

	var alternatives []domain.AlternativeOption
	for _, candidate := range candidates {
		if usedRooms[candidate.ID] {
			continue
		}
		reason, err := a.roomBusy(ctx, candidate.Room, *session)
		if err != nil {
			alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
				Requirement: req,
				Reason:      fmt.Sprintf("room %s schedule could not be read: %v", candidate.ID, err),
				Severity:    domain.SeverityCritical,
			})
			return
		}
		if reason != "" {
			if len(alternatives) < 3 {
				alternatives = append(alternatives, domain.AlternativeOption{
					ResourceID: candidate.ID,
					Name:       candidate.Name,
					Reason:     reason,
				})
			}
			continue
		}

		if session.RoomID == nil {
			if err := a.gw.SetSessionRoom(ctx, session.ID, candidate.ID); err != nil {
				alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
					Requirement: req,
					Reason:      fmt.Sprintf("room %s could not be committed: %v", candidate.ID, err),
					Severity:    domain.SeverityCritical,
				})
				return
			}
			roomID := candidate.ID
			session.RoomID = &roomID
		}

		cost := candidate.HourlyRate * session.Duration().Hours()
		if _, err := a.gw.InsertReservation(ctx, domain.Reservation{
			Base:         domain.Base{ID: uuid.NewString()},
			SessionID:    session.ID,
			ResourceType: domain.ResourceRoom,
			ResourceID:   candidate.ID,
			Quantity:     1,
			StartsAt:     session.StartsAt,
			EndsAt:       session.EndsAt,
			Cost:         cost,
		}); err != nil {
			alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
				Requirement: req,
				Reason:      fmt.Sprintf("room %s reservation failed: %v", candidate.ID, err),
				Severity:    domain.SeverityCritical,
			})
			return
		}
		usedRooms[candidate.ID] = true
		alloc.AllocatedResources = append(alloc.AllocatedResources, domain.AllocatedResource{
			Type:       domain.ResourceRoom,
			ResourceID: candidate.ID,
			Name:       candidate.Name,
			Quantity:   1,
			Cost:       cost,
		})
		return
	}

	reason := "no available room satisfies the capacity and type requirements"
	if len(alternatives) > 0 {
		reason = "every candidate room is occupied during the session window"
	}
	alloc.AlternativeOptions = append(alloc.AlternativeOptions, alternatives...)
	alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
		Requirement: req,
		Reason:      reason,
		Severity:    domain.SeverityHigh,
	})
}

// roomBusy reports why a candidate room cannot host the session window, or
// empty when it is free.
func (a *Allocator) roomBusy(ctx context.Context, room domain.Room, session domain.ExamSession) (string, error) {
	others, err := a.gw.ListRoomSessions(ctx, room.ID)
	if err != nil {
		return "", fmt.Errorf("list room sessions: %w", err)
	}
	for _, other := range others {
		if other.ID == session.ID || other.Status != domain.SessionStatusScheduled {
			continue
		}
		if domain.Overlaps(session.StartsAt, session.EndsAt, other.StartsAt, other.EndsAt) {
			return fmt.Sprintf("occupied by session %s", other.ID), nil
		}
	}

	reservations, err := a.gw.ListResourceReservations(ctx, domain.ResourceRoom, room.ID, session.StartsAt, session.EndsAt)
	if err != nil {
		return "", fmt.Errorf("list room reservations: %w", err)
	}
	for _, res := range reservations {
		if res.SessionID != session.ID {
			return fmt.Sprintf("reserved for session %s", res.SessionID), nil
		}
	}
	return "", nil
}

// allocateEquipment reserves inventory equipment, falling back to the assigned
// room's own equipment at zero cost when the inventory cannot serve.
func (a *Allocator) allocateEquipment(ctx context.Context, session domain.ExamSession, req domain.ResourceRequirement, existing []domain.Reservation, alloc *domain.SessionAllocation) {
	items, err := a.gw.ListEquipmentByType(ctx, req.ID)
	if err != nil {
		// Inventory unavailable (including a missing table on fresh installs):
		// the room's own equipment is the only remaining source.
		a.logger.Warn("equipment inventory unavailable", "type", req.ID, "session", session.ID, "error", err)
		a.fallbackToRoomEquipment(ctx, session, req, alloc)
		return
	}

	// Re-sync guard: reuse a reservation already held on a matching item.
	for _, res := range existing {
		if res.ResourceType != domain.ResourceEquipment {
			continue
		}
		for _, item := range items {
			if res.ResourceID == item.ID && res.Quantity >= req.Quantity {
				alloc.AllocatedResources = append(alloc.AllocatedResources, domain.AllocatedResource{
					Type:       domain.ResourceEquipment,
					ResourceID: item.ID,
					Name:       item.Name,
					Quantity:   res.Quantity,
					Cost:       res.Cost,
				})
				return
			}
		}
	}

	for _, item := range items {
		free, err := a.freeQuantity(ctx, domain.ResourceEquipment, item.ID, item.Quantity, session)
		if err != nil {
			alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
				Requirement: req,
				Reason:      fmt.Sprintf("equipment %s reservations could not be read: %v", item.ID, err),
				Severity:    domain.SeverityCritical,
			})
			return
		}
		if free < req.Quantity {
			continue
		}
		cost := item.HourlyRate * float64(req.Quantity) * session.Duration().Hours()
		if _, err := a.gw.InsertReservation(ctx, domain.Reservation{
			Base:         domain.Base{ID: uuid.NewString()},
			SessionID:    session.ID,
			ResourceType: domain.ResourceEquipment,
			ResourceID:   item.ID,
			Quantity:     req.Quantity,
			StartsAt:     session.StartsAt,
			EndsAt:       session.EndsAt,
			Cost:         cost,
		}); err != nil {
			alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
				Requirement: req,
				Reason:      fmt.Sprintf("equipment %s reservation failed: %v", item.ID, err),
				Severity:    domain.SeverityCritical,
			})
			return
		}
		alloc.AllocatedResources = append(alloc.AllocatedResources, domain.AllocatedResource{
			Type:       domain.ResourceEquipment,
			ResourceID: item.ID,
			Name:       item.Name,
			Quantity:   req.Quantity,
			Cost:       cost,
		})
		return
	}

	a.fallbackToRoomEquipment(ctx, session, req, alloc)
}

// fallbackToRoomEquipment satisfies an equipment requirement from the
// session's assigned room at zero cost, or records a conflict.
func (a *Allocator) fallbackToRoomEquipment(ctx context.Context, session domain.ExamSession, req domain.ResourceRequirement, alloc *domain.SessionAllocation) {
	if session.RoomID != nil {
		room, err := a.gw.GetRoom(ctx, *session.RoomID)
		if err == nil && room.HasEquipment(req.ID, req.Quantity) {
			alloc.AllocatedResources = append(alloc.AllocatedResources, domain.AllocatedResource{
				Type:       domain.ResourceEquipment,
				ResourceID: room.ID,
				Name:       fmt.Sprintf("%s (in room %s)", req.Name, room.Name),
				Quantity:   req.Quantity,
				Cost:       0,
			})
			return
		}
	}

	severity := domain.SeverityLow
	if req.Priority == domain.PriorityRequired {
		severity = domain.SeverityHigh
	}
	alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
		Requirement: req,
		Reason:      fmt.Sprintf("no %s available in inventory or the assigned room", req.Name),
		Severity:    severity,
	})
}

// allocateMaterial reserves consumable materials at unit cost.
func (a *Allocator) allocateMaterial(ctx context.Context, session domain.ExamSession, req domain.ResourceRequirement, existing []domain.Reservation, alloc *domain.SessionAllocation) {
	items, err := a.gw.ListMaterialsByType(ctx, req.ID)
	if err != nil {
		alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
			Requirement: req,
			Reason:      fmt.Sprintf("material inventory could not be read: %v", err),
			Severity:    domain.SeverityCritical,
		})
		return
	}

	for _, res := range existing {
		if res.ResourceType != domain.ResourceMaterial {
			continue
		}
		for _, item := range items {
			if res.ResourceID == item.ID && res.Quantity >= req.Quantity {
				alloc.AllocatedResources = append(alloc.AllocatedResources, domain.AllocatedResource{
					Type:       domain.ResourceMaterial,
					ResourceID: item.ID,
					Name:       item.Name,
					Quantity:   res.Quantity,
					Cost:       res.Cost,
				})
				return
			}
		}
	}

	for _, item := range items {
		free, err := a.freeQuantity(ctx, domain.ResourceMaterial, item.ID, item.Quantity, session)
		if err != nil {
			alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
				Requirement: req,
				Reason:      fmt.Sprintf("material %s reservations could not be read: %v", item.ID, err),
				Severity:    domain.SeverityCritical,
			})
			return
		}
		if free < req.Quantity {
			continue
		}
		cost := item.UnitCost * float64(req.Quantity)
		if _, err := a.gw.InsertReservation(ctx, domain.Reservation{
			Base:         domain.Base{ID: uuid.NewString()},
			SessionID:    session.ID,
			ResourceType: domain.ResourceMaterial,
			ResourceID:   item.ID,
			Quantity:     req.Quantity,
			StartsAt:     session.StartsAt,
			EndsAt:       session.EndsAt,
			Cost:         cost,
		}); err != nil {
			alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
				Requirement: req,
				Reason:      fmt.Sprintf("material %s reservation failed: %v", item.ID, err),
				Severity:    domain.SeverityCritical,
			})
			return
		}
		alloc.AllocatedResources = append(alloc.AllocatedResources, domain.AllocatedResource{
			Type:       domain.ResourceMaterial,
			ResourceID: item.ID,
			Name:       item.Name,
			Quantity:   req.Quantity,
			Cost:       cost,
		})
		return
	}

	severity := domain.SeverityLow
	if req.Priority == domain.PriorityRequired {
		severity = domain.SeverityMedium
	}
	alloc.Conflicts = append(alloc.Conflicts, domain.ResourceConflict{
		Requirement: req,
		Reason:      fmt.Sprintf("no %s in stock for the requested quantity", req.Name),
		Severity:    severity,
	})
}

// freeQuantity computes how many units of an inventory item remain free during
// the session window, net of reservations held by other sessions.
func (a *Allocator) freeQuantity(ctx context.Context, resourceType domain.ResourceType, resourceID string, total int, session domain.ExamSession) (int, error) {
	reservations, err := a.gw.ListResourceReservations(ctx, resourceType, resourceID, session.StartsAt, session.EndsAt)
	if err != nil {
		return 0, err
	}
	free := total
	for _, res := range reservations {
		if res.SessionID == session.ID {
			continue
		}
		free -= res.Quantity
	}
	return free, nil
}

func stringSpec(req domain.ResourceRequirement, key string) string {
	if v, ok := req.Specifications[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
