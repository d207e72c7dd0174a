package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by gateway lookups when the requested record does
// not exist. Components distinguish it from infrastructure failures: a missing
// record is a business condition, anything else degrades per the fail-soft
// contract.
var ErrNotFound = errors.New("record not found")

// RoomWithEquipment projects a room together with its embedded equipment list.
// The gateway resolves the projection once at the data-access boundary so
// callers never re-join loosely typed records.
type RoomWithEquipment struct {
	Room
}

// SessionWithExam projects a session joined with identifying exam fields used
// by overlap reporting.
type SessionWithExam struct {
	ExamSession
	ExamSubjectID string   `json:"exam_subject_id"`
	ExamType      ExamType `json:"exam_type"`
}

// Gateway is the engine's only access to the collaborator data store. Every
// call honors the caller's context deadline; implementations return wrapped
// errors for infrastructure failures and ErrNotFound for missing records.
//
// The engine consumes this contract and never reimplements storage semantics:
// each mutation is a single-row write whose atomicity the store owns.
type Gateway interface {
	// Exams and sessions.
	GetExam(ctx context.Context, id string) (Exam, error)
	GetSession(ctx context.Context, id string) (ExamSession, error)
	ListSessionsByExam(ctx context.Context, examID string) ([]ExamSession, error)
	// ListRoomSessions returns scheduled sessions holding the room, joined with
	// exam identity, for overlap detection.
	ListRoomSessions(ctx context.Context, roomID string) ([]SessionWithExam, error)
	SetSessionRoom(ctx context.Context, sessionID, roomID string) error

	// Rooms, timetables.
	GetRoom(ctx context.Context, id string) (RoomWithEquipment, error)
	ListAvailableRooms(ctx context.Context, roomType RoomType, minCapacity int) ([]RoomWithEquipment, error)
	ListRoomTimetable(ctx context.Context, roomID string) ([]TimetableSlot, error)

	// Academic records.
	GetSubject(ctx context.Context, id string) (Subject, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	ListStudentsByProgram(ctx context.Context, programID string) ([]Student, error)
	// ListGrades returns a student's grades in a subject ordered most recent first.
	ListGrades(ctx context.Context, studentID, subjectID string) ([]Grade, error)
	ListAttendance(ctx context.Context, studentID, subjectID, academicYearID string) ([]AttendanceRecord, error)

	// Registrations.
	ListRegistrationsByExam(ctx context.Context, examID string) ([]Registration, error)
	FindRegistration(ctx context.Context, examID, studentID string) (Registration, error)
	InsertRegistration(ctx context.Context, reg Registration) (Registration, error)

	// Resource inventories and reservations.
	ListEquipmentByType(ctx context.Context, equipType string) ([]EquipmentItem, error)
	ListMaterialsByType(ctx context.Context, materialType string) ([]MaterialItem, error)
	ListReservationsBySession(ctx context.Context, sessionID string) ([]Reservation, error)
	// ListResourceReservations returns reservations holding the resource that
	// overlap the window, across all sessions.
	ListResourceReservations(ctx context.Context, resourceType ResourceType, resourceID string, start, end time.Time) ([]Reservation, error)
	InsertReservation(ctx context.Context, res Reservation) (Reservation, error)

	// Supervision.
	ListAvailableSupervisors(ctx context.Context) ([]Supervisor, error)
	ListSupervisorAssignments(ctx context.Context, supervisorID string) ([]SupervisorAssignment, error)
	InsertSupervisorAssignment(ctx context.Context, a SupervisorAssignment) (SupervisorAssignment, error)
}

// EventStore is the optional durable backing for the sync bus event log.
type EventStore interface {
	AppendEvent(ctx context.Context, event SyncEvent) error
	UpdateEventStatus(ctx context.Context, id string, status SyncEventStatus, retryCount int, errMsg string) error
	ListRecentEvents(ctx context.Context, limit int) ([]SyncEvent, error)
}
