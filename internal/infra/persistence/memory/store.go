// Package memory provides an in-memory implementation of the data access
// gateway used for tests and ephemeral environments. Durable stores wrap it
// and persist snapshots of its state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"examcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.Gateway    = (*Store)(nil)
	_ domain.EventStore = (*Store)(nil)
)

type state struct {
	exams         map[string]domain.Exam
	sessions      map[string]domain.ExamSession
	rooms         map[string]domain.Room
	equipment     map[string]domain.EquipmentItem
	materials     map[string]domain.MaterialItem
	students      map[string]domain.Student
	subjects      map[string]domain.Subject
	grades        map[string]domain.Grade
	attendance    map[string]domain.AttendanceRecord
	timetable     map[string]domain.TimetableSlot
	registrations map[string]domain.Registration
	reservations  map[string]domain.Reservation
	supervisors   map[string]domain.Supervisor
	assignments   map[string]domain.SupervisorAssignment
	events        []domain.SyncEvent
}

func newState() state {
	return state{
		exams:         make(map[string]domain.Exam),
		sessions:      make(map[string]domain.ExamSession),
		rooms:         make(map[string]domain.Room),
		equipment:     make(map[string]domain.EquipmentItem),
		materials:     make(map[string]domain.MaterialItem),
		students:      make(map[string]domain.Student),
		subjects:      make(map[string]domain.Subject),
		grades:        make(map[string]domain.Grade),
		attendance:    make(map[string]domain.AttendanceRecord),
		timetable:     make(map[string]domain.TimetableSlot),
		registrations: make(map[string]domain.Registration),
		reservations:  make(map[string]domain.Reservation),
		supervisors:   make(map[string]domain.Supervisor),
		assignments:   make(map[string]domain.SupervisorAssignment),
	}
}

// Store is a mutex-guarded gateway over plain maps. All reads return clones so
// callers can never mutate shared state.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory gateway.
func NewStore() *Store {
	return &Store{
		state: newState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the store clock. Intended for tests.
func (s *Store) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

func newID() string { return uuid.NewString() }

func (s *Store) stamp(b *domain.Base) {
	now := s.nowFn()
	if b.ID == "" {
		b.ID = newID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// ---- seeding -------------------------------------------------------------

// SeedExam inserts or replaces an exam record.
func (s *Store) SeedExam(e domain.Exam) domain.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&e.Base)
	s.state.exams[e.ID] = e
	return e
}

// SeedSession inserts or replaces a session record.
func (s *Store) SeedSession(sess domain.ExamSession) domain.ExamSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&sess.Base)
	s.state.sessions[sess.ID] = sess
	return sess
}

// SeedRoom inserts or replaces a room record.
func (s *Store) SeedRoom(r domain.Room) domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&r.Base)
	s.state.rooms[r.ID] = r
	return r
}

// SeedEquipment inserts or replaces an equipment inventory record.
func (s *Store) SeedEquipment(e domain.EquipmentItem) domain.EquipmentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&e.Base)
	s.state.equipment[e.ID] = e
	return e
}

// SeedMaterial inserts or replaces a material inventory record.
func (s *Store) SeedMaterial(m domain.MaterialItem) domain.MaterialItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&m.Base)
	s.state.materials[m.ID] = m
	return m
}

// SeedStudent inserts or replaces a student record.
func (s *Store) SeedStudent(st domain.Student) domain.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&st.Base)
	s.state.students[st.ID] = st
	return st
}

// SeedSubject inserts or replaces a subject record.
func (s *Store) SeedSubject(sub domain.Subject) domain.Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&sub.Base)
	s.state.subjects[sub.ID] = sub
	return sub
}

// SeedGrade inserts or replaces a grade record.
func (s *Store) SeedGrade(g domain.Grade) domain.Grade {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&g.Base)
	s.state.grades[g.ID] = g
	return g
}

// SeedAttendance inserts or replaces an attendance record.
func (s *Store) SeedAttendance(a domain.AttendanceRecord) domain.AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&a.Base)
	s.state.attendance[a.ID] = a
	return a
}

// SeedTimetableSlot inserts or replaces a timetable slot.
func (s *Store) SeedTimetableSlot(slot domain.TimetableSlot) domain.TimetableSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&slot.Base)
	s.state.timetable[slot.ID] = slot
	return slot
}

// SeedRegistration inserts or replaces a registration record.
func (s *Store) SeedRegistration(r domain.Registration) domain.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&r.Base)
	s.state.registrations[r.ID] = r
	return r
}

// SeedSupervisor inserts or replaces a supervisor record.
func (s *Store) SeedSupervisor(sup domain.Supervisor) domain.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&sup.Base)
	s.state.supervisors[sup.ID] = sup
	return sup
}

// ---- exams and sessions --------------------------------------------------

// GetExam retrieves an exam by ID.
func (s *Store) GetExam(ctx context.Context, id string) (domain.Exam, error) {
	if err := ctx.Err(); err != nil {
		return domain.Exam{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.exams[id]
	if !ok {
		return domain.Exam{}, domain.ErrNotFound
	}
	return cloneExam(e), nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (domain.ExamSession, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExamSession{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.state.sessions[id]
	if !ok {
		return domain.ExamSession{}, domain.ErrNotFound
	}
	return cloneSession(sess), nil
}

// ListSessionsByExam returns an exam's sessions ordered by start time.
func (s *Store) ListSessionsByExam(ctx context.Context, examID string) ([]domain.ExamSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ExamSession
	for _, sess := range s.state.sessions {
		if sess.ExamID == examID {
			out = append(out, cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

// ListRoomSessions returns scheduled sessions holding the room joined with exam identity.
func (s *Store) ListRoomSessions(ctx context.Context, roomID string) ([]domain.SessionWithExam, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SessionWithExam
	for _, sess := range s.state.sessions {
		if sess.RoomID == nil || *sess.RoomID != roomID {
			continue
		}
		joined := domain.SessionWithExam{ExamSession: cloneSession(sess)}
		if exam, ok := s.state.exams[sess.ExamID]; ok {
			joined.ExamSubjectID = exam.SubjectID
			joined.ExamType = exam.Type
		}
		out = append(out, joined)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetSessionRoom commits a room reference onto a session.
func (s *Store) SetSessionRoom(ctx context.Context, sessionID, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.state.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	sess.RoomID = &roomID
	sess.UpdatedAt = s.nowFn()
	s.state.sessions[sessionID] = sess
	return nil
}

// ---- rooms and timetables ------------------------------------------------

// GetRoom retrieves a room with its embedded equipment.
func (s *Store) GetRoom(ctx context.Context, id string) (domain.RoomWithEquipment, error) {
	if err := ctx.Err(); err != nil {
		return domain.RoomWithEquipment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.rooms[id]
	if !ok {
		return domain.RoomWithEquipment{}, domain.ErrNotFound
	}
	return domain.RoomWithEquipment{Room: cloneRoom(r)}, nil
}

// ListAvailableRooms returns available rooms of the type with at least the
// requested capacity, ordered by capacity then ID for deterministic allocation.
func (s *Store) ListAvailableRooms(ctx context.Context, roomType domain.RoomType, minCapacity int) ([]domain.RoomWithEquipment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RoomWithEquipment
	for _, r := range s.state.rooms {
		if !r.Available || !domain.RoomTypeCompatible(roomType, r.Type) || r.Capacity < minCapacity {
			continue
		}
		out = append(out, domain.RoomWithEquipment{Room: cloneRoom(r)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Capacity == out[j].Capacity {
			return out[i].ID < out[j].ID
		}
		return out[i].Capacity < out[j].Capacity
	})
	return out, nil
}

// ListRoomTimetable returns the recurring slots occupying a room.
func (s *Store) ListRoomTimetable(ctx context.Context, roomID string) ([]domain.TimetableSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TimetableSlot
	for _, slot := range s.state.timetable {
		if slot.RoomID == roomID {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- academic records ----------------------------------------------------

// GetSubject retrieves a subject by ID.
func (s *Store) GetSubject(ctx context.Context, id string) (domain.Subject, error) {
	if err := ctx.Err(); err != nil {
		return domain.Subject{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.state.subjects[id]
	if !ok {
		return domain.Subject{}, domain.ErrNotFound
	}
	return cloneSubject(sub), nil
}

// GetStudent retrieves a student by ID.
func (s *Store) GetStudent(ctx context.Context, id string) (domain.Student, error) {
	if err := ctx.Err(); err != nil {
		return domain.Student{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state.students[id]
	if !ok {
		return domain.Student{}, domain.ErrNotFound
	}
	return cloneStudent(st), nil
}

// ListStudentsByProgram returns a program's students ordered by ID.
func (s *Store) ListStudentsByProgram(ctx context.Context, programID string) ([]domain.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Student
	for _, st := range s.state.students {
		if st.ProgramID == programID {
			out = append(out, cloneStudent(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListGrades returns a student's grades in a subject, most recent first.
func (s *Store) ListGrades(ctx context.Context, studentID, subjectID string) ([]domain.Grade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Grade
	for _, g := range s.state.grades {
		if g.StudentID == studentID && g.SubjectID == subjectID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

// ListAttendance returns a student's attendance records in a subject for the year.
func (s *Store) ListAttendance(ctx context.Context, studentID, subjectID, academicYearID string) ([]domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AttendanceRecord
	for _, a := range s.state.attendance {
		if a.StudentID == studentID && a.SubjectID == subjectID && a.AcademicYearID == academicYearID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ---- registrations -------------------------------------------------------

// ListRegistrationsByExam returns an exam's registrations ordered by student ID.
func (s *Store) ListRegistrationsByExam(ctx context.Context, examID string) ([]domain.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Registration
	for _, r := range s.state.registrations {
		if r.ExamID == examID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// FindRegistration returns the registration linking a student to an exam.
func (s *Store) FindRegistration(ctx context.Context, examID, studentID string) (domain.Registration, error) {
	if err := ctx.Err(); err != nil {
		return domain.Registration{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.state.registrations {
		if r.ExamID == examID && r.StudentID == studentID {
			return r, nil
		}
	}
	return domain.Registration{}, domain.ErrNotFound
}

// InsertRegistration stores a new registration.
func (s *Store) InsertRegistration(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	if err := ctx.Err(); err != nil {
		return domain.Registration{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&reg.Base)
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = s.nowFn()
	}
	s.state.registrations[reg.ID] = reg
	return reg, nil
}

// ---- inventories and reservations ----------------------------------------

// ListEquipmentByType returns available inventory entries of the type.
func (s *Store) ListEquipmentByType(ctx context.Context, equipType string) ([]domain.EquipmentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.EquipmentItem
	for _, e := range s.state.equipment {
		if e.Type == equipType && e.Available {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListMaterialsByType returns inventory entries of the material type.
func (s *Store) ListMaterialsByType(ctx context.Context, materialType string) ([]domain.MaterialItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MaterialItem
	for _, m := range s.state.materials {
		if m.Type == materialType {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListReservationsBySession returns the reservations already held for a session.
func (s *Store) ListReservationsBySession(ctx context.Context, sessionID string) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Reservation
	for _, r := range s.state.reservations {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListResourceReservations returns reservations of a resource overlapping the window.
func (s *Store) ListResourceReservations(ctx context.Context, resourceType domain.ResourceType, resourceID string, start, end time.Time) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Reservation
	for _, r := range s.state.reservations {
		if r.ResourceType != resourceType || r.ResourceID != resourceID {
			continue
		}
		if domain.Overlaps(r.StartsAt, r.EndsAt, start, end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InsertReservation stores a new reservation.
func (s *Store) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&res.Base)
	s.state.reservations[res.ID] = res
	return res, nil
}

// ---- supervision ---------------------------------------------------------

// ListAvailableSupervisors returns supervisors flagged available, ordered by ID.
func (s *Store) ListAvailableSupervisors(ctx context.Context) ([]domain.Supervisor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Supervisor
	for _, sup := range s.state.supervisors {
		if sup.Available {
			out = append(out, sup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListSupervisorAssignments returns a supervisor's committed assignments.
func (s *Store) ListSupervisorAssignments(ctx context.Context, supervisorID string) ([]domain.SupervisorAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SupervisorAssignment
	for _, a := range s.state.assignments {
		if a.SupervisorID == supervisorID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InsertSupervisorAssignment stores a new assignment.
func (s *Store) InsertSupervisorAssignment(ctx context.Context, a domain.SupervisorAssignment) (domain.SupervisorAssignment, error) {
	if err := ctx.Err(); err != nil {
		return domain.SupervisorAssignment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&a.Base)
	s.state.assignments[a.ID] = a
	return a, nil
}

// ---- event log -----------------------------------------------------------

// AppendEvent appends a sync event to the log.
func (s *Store) AppendEvent(ctx context.Context, event domain.SyncEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.events = append(s.state.events, event)
	return nil
}

// UpdateEventStatus mutates the dispatch-owned fields of a logged event.
func (s *Store) UpdateEventStatus(ctx context.Context, id string, status domain.SyncEventStatus, retryCount int, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.events {
		if s.state.events[i].ID == id {
			s.state.events[i].Status = status
			s.state.events[i].RetryCount = retryCount
			s.state.events[i].Error = errMsg
			return nil
		}
	}
	return domain.ErrNotFound
}

// ListRecentEvents returns up to limit events, newest first.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]domain.SyncEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.state.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.SyncEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.state.events[i])
	}
	return out, nil
}

// ---- cloning -------------------------------------------------------------

func cloneExam(e domain.Exam) domain.Exam {
	cp := e
	cp.Materials = append([]domain.MaterialNeed(nil), e.Materials...)
	return cp
}

func cloneSession(sess domain.ExamSession) domain.ExamSession {
	cp := sess
	if sess.RoomID != nil {
		id := *sess.RoomID
		cp.RoomID = &id
	}
	return cp
}

func cloneRoom(r domain.Room) domain.Room {
	cp := r
	cp.Equipment = append([]domain.RoomEquipment(nil), r.Equipment...)
	return cp
}

func cloneStudent(st domain.Student) domain.Student {
	cp := st
	cp.Accommodations = append([]string(nil), st.Accommodations...)
	return cp
}

func cloneSubject(sub domain.Subject) domain.Subject {
	cp := sub
	cp.PrerequisiteIDs = append([]string(nil), sub.PrerequisiteIDs...)
	return cp
}
