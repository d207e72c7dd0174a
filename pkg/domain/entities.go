// Package domain defines the persistent entities, value types, and
// rule evaluation primitives used by the exam scheduling engine.
package domain

import "time"

// EntityType identifies the type of record referenced by violations and sync events.
type EntityType string

// Supported entity type identifiers used in violations and gateway buckets.
const (
	// EntityExam identifies an exam record.
	EntityExam EntityType = "exam"
	// EntitySession identifies an exam session record.
	EntitySession EntityType = "exam_session"
	// EntityRoom identifies a room record.
	EntityRoom EntityType = "room"
	// EntityEquipment identifies an equipment inventory record.
	EntityEquipment EntityType = "equipment"
	// EntityMaterial identifies a material inventory record.
	EntityMaterial EntityType = "material"
	// EntityStudent identifies a student record.
	EntityStudent EntityType = "student"
	// EntitySubject identifies a subject record.
	EntitySubject EntityType = "subject"
	// EntityGrade identifies a grade record.
	EntityGrade EntityType = "grade"
	// EntityAttendance identifies an attendance record.
	EntityAttendance EntityType = "attendance"
	// EntityTimetableSlot identifies a recurring timetable slot.
	EntityTimetableSlot EntityType = "timetable_slot"
	// EntityRegistration identifies an exam registration record.
	EntityRegistration EntityType = "registration"
	// EntityReservation identifies a resource reservation record.
	EntityReservation EntityType = "reservation"
	// EntitySupervisor identifies a supervisor record.
	EntitySupervisor EntityType = "supervisor"
)

// ExamType classifies how an exam is conducted and which room and equipment it needs.
type ExamType string

// Canonical exam types recognised by the validator and allocator.
const (
	ExamWritten   ExamType = "written"
	ExamPractical ExamType = "practical"
	ExamOral      ExamType = "oral"
	ExamComputer  ExamType = "computer"
)

// ExamStatus enumerates exam lifecycle states owned by the academic module.
type ExamStatus string

// Canonical exam statuses.
const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusScheduled ExamStatus = "scheduled"
	ExamStatusCompleted ExamStatus = "completed"
	ExamStatusCancelled ExamStatus = "cancelled"
)

// SessionStatus enumerates exam session lifecycle states.
type SessionStatus string

// Canonical session statuses; only scheduled sessions participate in conflict detection.
const (
	SessionStatusDraft     SessionStatus = "draft"
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// RoomType classifies rooms for exam-type compatibility checks.
type RoomType string

// Canonical room types.
const (
	RoomClassroom    RoomType = "classroom"
	RoomAmphitheater RoomType = "amphitheater"
	RoomLaboratory   RoomType = "laboratory"
	RoomMeetingRoom  RoomType = "meeting_room"
	RoomComputerLab  RoomType = "computer_lab"
)

// RegistrationStatus enumerates exam registration states.
type RegistrationStatus string

// Canonical registration statuses. Any existing registration, regardless of
// status, blocks re-evaluation of the student as eligible.
const (
	RegistrationRegistered      RegistrationStatus = "registered"
	RegistrationPendingApproval RegistrationStatus = "pending_approval"
	RegistrationCancelled       RegistrationStatus = "cancelled"
)

// Base contains common fields for all collaborator-owned records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID returns the record's identifier.
func (b Base) EntityID() string { return b.ID }

// Exam is the academic module's exam record. The engine reads it and annotates
// derived state; it never creates or deletes exams.
type Exam struct {
	Base
	SubjectID         string         `json:"subject_id"`
	ProgramID         string         `json:"program_id"`
	AcademicYearID    string         `json:"academic_year_id"`
	Type              ExamType       `json:"exam_type"`
	DurationMinutes   int            `json:"duration_minutes"`
	MaxStudents       int            `json:"max_students"`
	MinSupervisors    int            `json:"min_supervisors"`
	MinGrade          float64        `json:"min_grade"`
	MinAttendanceRate float64        `json:"min_attendance_rate"`
	LevelRequirement  int            `json:"level_requirement"`
	Semester          int            `json:"semester"`
	Materials         []MaterialNeed `json:"materials"`
	Status            ExamStatus     `json:"status"`
}

// MaterialNeed declares a material required (or optionally wanted) by an exam.
type MaterialNeed struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Required bool   `json:"required"`
}

// ExamSession is the atomic unit of resource allocation and conflict
// detection. RoomID stays nil until the allocator commits a room.
type ExamSession struct {
	Base
	ExamID   string        `json:"exam_id"`
	RoomID   *string       `json:"room_id"`
	StartsAt time.Time     `json:"starts_at"`
	EndsAt   time.Time     `json:"ends_at"`
	Status   SessionStatus `json:"status"`
}

// Duration returns the session length.
func (s ExamSession) Duration() time.Duration {
	return s.EndsAt.Sub(s.StartsAt)
}

// Overlaps reports whether two half-open [start,end) intervals intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// SessionsOverlap applies Overlaps to two sessions' scheduled windows.
func SessionsOverlap(a, b ExamSession) bool {
	return Overlaps(a.StartsAt, a.EndsAt, b.StartsAt, b.EndsAt)
}

// RoomEquipment describes equipment embedded on a room record. It is the
// fallback equipment source when the dedicated inventory cannot satisfy a
// requirement.
type RoomEquipment struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

// Room captures physical room metadata.
type Room struct {
	Base
	Name       string          `json:"name"`
	Type       RoomType        `json:"room_type"`
	Capacity   int             `json:"capacity"`
	HourlyRate float64         `json:"hourly_rate"`
	Equipment  []RoomEquipment `json:"equipment"`
	Available  bool            `json:"available"`
}

// HasEquipment reports whether the room declares at least quantity units of the
// given equipment type.
func (r Room) HasEquipment(equipType string, quantity int) bool {
	for _, eq := range r.Equipment {
		if eq.Type == equipType && eq.Quantity >= quantity {
			return true
		}
	}
	return false
}

// EquipmentItem is a reservable entry in the dedicated equipment inventory.
type EquipmentItem struct {
	Base
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Quantity   int     `json:"quantity"`
	HourlyRate float64 `json:"hourly_rate"`
	Available  bool    `json:"available"`
}

// MaterialItem is a consumable entry in the material inventory.
type MaterialItem struct {
	Base
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Quantity int     `json:"quantity"`
	UnitCost float64 `json:"unit_cost"`
}

// Student is the student-module record consumed by eligibility checks.
type Student struct {
	Base
	Name           string   `json:"name"`
	ProgramID      string   `json:"program_id"`
	YearLevel      int      `json:"year_level"`
	Accommodations []string `json:"accommodations"`
}

// Subject is the academic subject an exam examines.
type Subject struct {
	Base
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	ProgramID       string   `json:"program_id"`
	Semester        int      `json:"semester"`
	PrerequisiteIDs []string `json:"prerequisite_ids"`
}

// Grade is a published or draft mark for a student in a subject.
type Grade struct {
	Base
	StudentID      string    `json:"student_id"`
	SubjectID      string    `json:"subject_id"`
	AcademicYearID string    `json:"academic_year_id"`
	Value          float64   `json:"value"`
	Scale          float64   `json:"scale"`
	Published      bool      `json:"published"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Normalized converts the grade to the canonical 0–20 scale. A zero scale
// yields zero rather than dividing by it.
func (g Grade) Normalized() float64 {
	if g.Scale <= 0 {
		return 0
	}
	return g.Value / g.Scale * 20
}

// AttendanceRecord marks a student's presence in one subject session.
type AttendanceRecord struct {
	Base
	StudentID      string    `json:"student_id"`
	SubjectID      string    `json:"subject_id"`
	AcademicYearID string    `json:"academic_year_id"`
	Present        bool      `json:"present"`
	Date           time.Time `json:"date"`
}

// TimetableSlot is a recurring weekly occupation of a room by regular teaching.
type TimetableSlot struct {
	Base
	RoomID      string       `json:"room_id"`
	SubjectID   string       `json:"subject_id"`
	Weekday     time.Weekday `json:"weekday"`
	StartMinute int          `json:"start_minute"`
	EndMinute   int          `json:"end_minute"`
}

// Registration links a student to an exam.
type Registration struct {
	Base
	ExamID       string             `json:"exam_id"`
	StudentID    string             `json:"student_id"`
	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
}

// ResourceType discriminates reservable resource families.
type ResourceType string

// Reservable resource families.
const (
	ResourceRoom      ResourceType = "room"
	ResourceEquipment ResourceType = "equipment"
	ResourceMaterial  ResourceType = "material"
)

// Reservation is a time-bounded hold of a resource for one session. The
// SessionID foreign key is the dedupe guard for repeated syncs: the allocator
// skips requirements already covered by a reservation for the same session.
type Reservation struct {
	Base
	SessionID    string       `json:"session_id"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   string       `json:"resource_id"`
	Quantity     int          `json:"quantity"`
	StartsAt     time.Time    `json:"starts_at"`
	EndsAt       time.Time    `json:"ends_at"`
	Cost         float64      `json:"cost"`
}

// Supervisor is an invigilation-capable staff member.
type Supervisor struct {
	Base
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// SupervisorAssignment commits a supervisor to one session window.
type SupervisorAssignment struct {
	Base
	SessionID    string    `json:"session_id"`
	SupervisorID string    `json:"supervisor_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
}
