package allocator

import (
	"fmt"

	"examcore/pkg/domain"
)

// studentsPerRoom caps the size of one seating batch. Exams with more
// registered students than this need multiple rooms.
const studentsPerRoom = 30

// Stable requirement identifiers for the equipment families derived from exam
// types. Equipment requirements carry the inventory type as their ID.
const (
	equipComputers  = "computers"
	equipProjector  = "projector"
	equipMicrophone = "microphone"
	equipDesks      = "desks"
	equipLaboratory = "laboratory_equipment"
)

// DeriveRequirements computes the resource demand of one exam: room batches of
// at most studentsPerRoom seats, equipment implied by the exam type, and the
// exam's declared material list. Requirements are recomputed on every sync and
// never persisted, so their IDs only need to be stable within a run.
func DeriveRequirements(exam domain.Exam, registered int) []domain.ResourceRequirement {
	students := registered
	if students <= 0 {
		students = exam.MaxStudents
	}
	if students <= 0 {
		students = 1
	}

	var out []domain.ResourceRequirement

	batches := (students + studentsPerRoom - 1) / studentsPerRoom
	for i := 0; i < batches; i++ {
		batchSize := studentsPerRoom
		if i == batches-1 {
			batchSize = students - i*studentsPerRoom
		}
		out = append(out, domain.ResourceRequirement{
			Type:     domain.ResourceRoom,
			ID:       fmt.Sprintf("room-batch-%d", i+1),
			Name:     fmt.Sprintf("exam room (batch %d of %d)", i+1, batches),
			Quantity: 1,
			Priority: domain.PriorityRequired,
			Specifications: map[string]any{
				"min_capacity": batchSize,
				"room_type":    string(domain.RequiredRoomType(exam.Type)),
				"exam_type":    string(exam.Type),
			},
		})
	}

	switch exam.Type {
	case domain.ExamComputer:
		out = append(out,
			equipmentRequirement(equipComputers, "workstations", students, domain.PriorityRequired),
			equipmentRequirement(equipProjector, "projector", 1, domain.PriorityRequired),
		)
	case domain.ExamOral:
		out = append(out,
			equipmentRequirement(equipMicrophone, "microphones", 2, domain.PriorityPreferred),
		)
	case domain.ExamPractical:
		out = append(out,
			equipmentRequirement(equipLaboratory, "laboratory stations", students, domain.PriorityRequired),
		)
	default:
		out = append(out,
			equipmentRequirement(equipDesks, "exam desks", students, domain.PriorityRequired),
		)
	}

	for _, need := range exam.Materials {
		priority := domain.PriorityOptional
		if need.Required {
			priority = domain.PriorityRequired
		}
		out = append(out, domain.ResourceRequirement{
			Type:     domain.ResourceMaterial,
			ID:       need.Type,
			Name:     need.Name,
			Quantity: need.Quantity,
			Priority: priority,
		})
	}

	return out
}

func equipmentRequirement(equipType, name string, quantity int, priority domain.RequirementPriority) domain.ResourceRequirement {
	return domain.ResourceRequirement{
		Type:     domain.ResourceEquipment,
		ID:       equipType,
		Name:     name,
		Quantity: quantity,
		Priority: priority,
	}
}

// minCapacity extracts the seating demand a room candidate must satisfy.
func minCapacity(req domain.ResourceRequirement) int {
	if v, ok := req.Specifications["min_capacity"]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return 0
}
