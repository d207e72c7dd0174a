package domain

import (
	"encoding/json"
	"time"
)

// Module names the independently-owned subsystems connected by the sync bus.
type Module string

// Modules participating in cross-module synchronisation.
const (
	ModuleExams     Module = "exams"
	ModuleAcademic  Module = "academic"
	ModuleStudents  Module = "students"
	ModuleResources Module = "resources"
	ModuleFinance   Module = "finance"
	ModuleDocuments Module = "documents"
)

// SyncEventStatus tracks an event through the bus state machine.
type SyncEventStatus string

// Event statuses: pending -> processing -> {completed, failed}. A failed event
// returns to pending only through an explicit retry.
const (
	EventPending    SyncEventStatus = "pending"
	EventProcessing SyncEventStatus = "processing"
	EventCompleted  SyncEventStatus = "completed"
	EventFailed     SyncEventStatus = "failed"
)

// SyncEvent is one change notification relayed between modules. Events are
// append-only: the bus mutates only Status, RetryCount and Error during
// dispatch, and nothing deletes them from the log.
type SyncEvent struct {
	ID         string          `json:"id"`
	Module     Module          `json:"module"`
	Action     string          `json:"action"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Status     SyncEventStatus `json:"status"`
	RetryCount int             `json:"retry_count"`
	Error      string          `json:"error,omitempty"`
}

// Key returns the dispatch key the bus matches against its handler table.
func (e SyncEvent) Key() string {
	return string(e.Module) + ":" + e.Action
}

// SyncConfig is the process-wide fan-out configuration. It is an immutable
// value: reconfiguration swaps the whole value atomically instead of mutating
// shared state in place.
type SyncConfig struct {
	EnabledModules []Module            `json:"enabled_modules"`
	SyncRules      map[Module][]Module `json:"sync_rules"`
	AutoSync       bool                `json:"auto_sync"`
	BatchSize      int                 `json:"batch_size"`
	MaxRetries     int                 `json:"max_retries"`
}

// DefaultSyncConfig mirrors the module graph of the school management system:
// exam changes reach academic, students and resources; academic and student
// changes reach exams.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		EnabledModules: []Module{ModuleExams, ModuleAcademic, ModuleStudents, ModuleResources},
		SyncRules: map[Module][]Module{
			ModuleExams:     {ModuleAcademic, ModuleStudents, ModuleResources},
			ModuleAcademic:  {ModuleExams},
			ModuleStudents:  {ModuleExams},
			ModuleResources: {ModuleExams},
		},
		AutoSync:   true,
		BatchSize:  50,
		MaxRetries: 3,
	}
}

// Enabled reports whether the module participates in fan-out.
func (c SyncConfig) Enabled(m Module) bool {
	for _, e := range c.EnabledModules {
		if e == m {
			return true
		}
	}
	return false
}

// Targets returns the modules affected by a change in source, per SyncRules.
func (c SyncConfig) Targets(source Module) []Module {
	return c.SyncRules[source]
}

// SyncStatus summarises one orchestrated sync for display.
type SyncStatus string

// Sync statuses: synced when no critical issues, conflict when at least one
// critical violation or allocation conflict, error when infrastructure failure
// prevented completion.
const (
	SyncSynced   SyncStatus = "synced"
	SyncConflict SyncStatus = "conflict"
	SyncError    SyncStatus = "error"
)

// ExamAcademicSync is the per-exam record produced by an academic sync.
type ExamAcademicSync struct {
	ExamID     string      `json:"exam_id"`
	Violations []Violation `json:"violations"`
	Status     SyncStatus  `json:"status"`
	SyncedAt   time.Time   `json:"synced_at"`
}

// ExamResourceSync is the per-exam record produced by a resources sync.
type ExamResourceSync struct {
	ExamID       string                `json:"exam_id"`
	Requirements []ResourceRequirement `json:"requirements"`
	Allocations  []SessionAllocation   `json:"allocations"`
	Availability AvailabilityStatus    `json:"availability"`
	TotalCost    float64               `json:"total_cost"`
	Status       SyncStatus            `json:"status"`
	SyncedAt     time.Time             `json:"synced_at"`
}

// IneligibleStudent pairs a rejected student with the first failing rule's reason.
type IneligibleStudent struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// EnrollmentStats aggregates enrollment counts for display.
type EnrollmentStats struct {
	Enrolled   int `json:"enrolled"`
	Eligible   int `json:"eligible"`
	Pending    int `json:"pending"`
	Ineligible int `json:"ineligible"`
}

// ExamStudentSync is the per-exam record produced by a students sync.
type ExamStudentSync struct {
	ExamID             string              `json:"exam_id"`
	EnrolledStudents   []string            `json:"enrolled_students"`
	EligibleStudents   []string            `json:"eligible_students"`
	PendingApprovals   []string            `json:"pending_approvals"`
	IneligibleStudents []IneligibleStudent `json:"ineligible_students"`
	Accommodations     map[string][]string `json:"accommodations"`
	Stats              EnrollmentStats     `json:"enrollment_stats"`
	Status             SyncStatus          `json:"status"`
	SyncedAt           time.Time           `json:"synced_at"`
}
