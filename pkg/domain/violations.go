package domain

// ViolationType classifies constraint violations by the family of conflict detected.
type ViolationType string

// Canonical violation types.
const (
	// ViolationTimeConflict marks overlapping occupation of a room or slot.
	ViolationTimeConflict ViolationType = "time_conflict"
	// ViolationResourceConflict marks unsatisfiable resource or program constraints,
	// including infrastructure failures degraded to a reportable condition.
	ViolationResourceConflict ViolationType = "resource_conflict"
	// ViolationTeacherAvailability marks supervisor shortfalls.
	ViolationTeacherAvailability ViolationType = "teacher_availability"
	// ViolationStudentOverlap marks student-facing conflicts such as missing prerequisites.
	ViolationStudentOverlap ViolationType = "student_overlap"
)

// ViolationSeverity grades a violation's impact.
type ViolationSeverity string

// Violation severities determine sync status and display priority.
const (
	SeverityLow      ViolationSeverity = "low"
	SeverityMedium   ViolationSeverity = "medium"
	SeverityHigh     ViolationSeverity = "high"
	SeverityCritical ViolationSeverity = "critical"
)

// Violation reports a failed constraint check. Violations are immutable once
// produced for a validation run; a fresh run produces a fresh set.
type Violation struct {
	ID                  string            `json:"id"`
	Type                ViolationType     `json:"type"`
	Severity            ViolationSeverity `json:"severity"`
	Description         string            `json:"description"`
	AffectedEntities    []string          `json:"affected_entities"`
	SuggestedResolution string            `json:"suggested_resolution,omitempty"`
}

// HasCritical reports whether any violation in the set is critical.
func HasCritical(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// RequirementPriority ranks how strongly a resource requirement binds.
type RequirementPriority string

// Requirement priorities.
const (
	PriorityRequired  RequirementPriority = "required"
	PriorityPreferred RequirementPriority = "preferred"
	PriorityOptional  RequirementPriority = "optional"
)

// ResourceRequirement is a derived demand for one resource. Requirements are
// recomputed on every sync, never persisted.
type ResourceRequirement struct {
	Type           ResourceType        `json:"type"`
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Quantity       int                 `json:"quantity"`
	Priority       RequirementPriority `json:"priority"`
	Specifications map[string]any      `json:"specifications,omitempty"`
}

// AllocationStatus describes the outcome of allocating one session's requirements.
type AllocationStatus string

// Allocation statuses. The status is derived: complete iff no conflicts were
// recorded; conflict iff nothing was allocated; partial otherwise.
const (
	AllocationPending  AllocationStatus = "pending"
	AllocationPartial  AllocationStatus = "partial"
	AllocationComplete AllocationStatus = "complete"
	AllocationConflict AllocationStatus = "conflict"
)

// AllocatedResource records one satisfied requirement with its committed cost.
type AllocatedResource struct {
	Type       ResourceType `json:"type"`
	ResourceID string       `json:"resource_id"`
	Name       string       `json:"name"`
	Quantity   int          `json:"quantity"`
	Cost       float64      `json:"cost"`
}

// ResourceConflict records one requirement the allocator could not satisfy.
type ResourceConflict struct {
	Requirement ResourceRequirement `json:"requirement"`
	Reason      string              `json:"reason"`
	Severity    ViolationSeverity   `json:"severity"`
}

// AlternativeOption is a rejected candidate attached for human review.
type AlternativeOption struct {
	ResourceID string `json:"resource_id"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

// SessionAllocation aggregates one session's allocation outcome.
type SessionAllocation struct {
	SessionID          string              `json:"session_id"`
	AllocatedResources []AllocatedResource `json:"allocated_resources"`
	AlternativeOptions []AlternativeOption `json:"alternative_options"`
	Conflicts          []ResourceConflict  `json:"conflicts"`
	Status             AllocationStatus    `json:"status"`
	CostEstimate       float64             `json:"cost_estimate"`
}

// DeriveStatus computes the allocation status invariant from the recorded
// resources and conflicts.
func (a *SessionAllocation) DeriveStatus() {
	switch {
	case len(a.Conflicts) == 0:
		a.Status = AllocationComplete
	case len(a.AllocatedResources) == 0:
		a.Status = AllocationConflict
	default:
		a.Status = AllocationPartial
	}
}

// AvailabilityStatus summarises resource availability across all sessions of an exam.
type AvailabilityStatus string

// Availability statuses.
const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityLimited     AvailabilityStatus = "limited"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
)

// DeriveAvailability folds session allocations into an exam-level availability status.
func DeriveAvailability(allocations []SessionAllocation) AvailabilityStatus {
	if len(allocations) == 0 {
		return AvailabilityUnavailable
	}
	complete := 0
	usable := 0
	for _, a := range allocations {
		switch a.Status {
		case AllocationComplete:
			complete++
			usable++
		case AllocationPartial:
			usable++
		}
	}
	switch {
	case complete == len(allocations):
		return AvailabilityAvailable
	case usable == 0:
		return AvailabilityUnavailable
	default:
		return AvailabilityLimited
	}
}
