package memory

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Bucket names used when exporting state to durable stores.
const (
	BucketExams         = "exams"
	BucketSessions      = "sessions"
	BucketRooms         = "rooms"
	BucketEquipment     = "equipment"
	BucketMaterials     = "materials"
	BucketStudents      = "students"
	BucketSubjects      = "subjects"
	BucketGrades        = "grades"
	BucketAttendance    = "attendance"
	BucketTimetable     = "timetable"
	BucketRegistrations = "registrations"
	BucketReservations  = "reservations"
	BucketSupervisors   = "supervisors"
	BucketAssignments   = "assignments"
	BucketEvents        = "events"
)

// Buckets lists every bucket in a stable order.
func Buckets() []string {
	return []string{
		BucketExams,
		BucketSessions,
		BucketRooms,
		BucketEquipment,
		BucketMaterials,
		BucketStudents,
		BucketSubjects,
		BucketGrades,
		BucketAttendance,
		BucketTimetable,
		BucketRegistrations,
		BucketReservations,
		BucketSupervisors,
		BucketAssignments,
		BucketEvents,
	}
}

// ExportState serializes each bucket's records as a JSON array keyed by bucket
// name. Records are ordered by ID so exports of the same state are identical.
func (s *Store) ExportState() (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(Buckets()))
	put := func(bucket string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("export %s: %w", bucket, err)
		}
		out[bucket] = payload
		return nil
	}
	if err := put(BucketExams, sortedValues(s.state.exams)); err != nil {
		return nil, err
	}
	if err := put(BucketSessions, sortedValues(s.state.sessions)); err != nil {
		return nil, err
	}
	if err := put(BucketRooms, sortedValues(s.state.rooms)); err != nil {
		return nil, err
	}
	if err := put(BucketEquipment, sortedValues(s.state.equipment)); err != nil {
		return nil, err
	}
	if err := put(BucketMaterials, sortedValues(s.state.materials)); err != nil {
		return nil, err
	}
	if err := put(BucketStudents, sortedValues(s.state.students)); err != nil {
		return nil, err
	}
	if err := put(BucketSubjects, sortedValues(s.state.subjects)); err != nil {
		return nil, err
	}
	if err := put(BucketGrades, sortedValues(s.state.grades)); err != nil {
		return nil, err
	}
	if err := put(BucketAttendance, sortedValues(s.state.attendance)); err != nil {
		return nil, err
	}
	if err := put(BucketTimetable, sortedValues(s.state.timetable)); err != nil {
		return nil, err
	}
	if err := put(BucketRegistrations, sortedValues(s.state.registrations)); err != nil {
		return nil, err
	}
	if err := put(BucketReservations, sortedValues(s.state.reservations)); err != nil {
		return nil, err
	}
	if err := put(BucketSupervisors, sortedValues(s.state.supervisors)); err != nil {
		return nil, err
	}
	if err := put(BucketAssignments, sortedValues(s.state.assignments)); err != nil {
		return nil, err
	}
	if err := put(BucketEvents, s.state.events); err != nil {
		return nil, err
	}
	return out, nil
}

// ImportState replaces the store's contents with the decoded buckets. Buckets
// absent from the payload are reset to empty.
func (s *Store) ImportState(buckets map[string]json.RawMessage) error {
	next := newState()
	if err := fillMap(buckets, BucketExams, next.exams); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketSessions, next.sessions); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketRooms, next.rooms); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketEquipment, next.equipment); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketMaterials, next.materials); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketStudents, next.students); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketSubjects, next.subjects); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketGrades, next.grades); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketAttendance, next.attendance); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketTimetable, next.timetable); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketRegistrations, next.registrations); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketReservations, next.reservations); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketSupervisors, next.supervisors); err != nil {
		return err
	}
	if err := fillMap(buckets, BucketAssignments, next.assignments); err != nil {
		return err
	}
	if raw, ok := buckets[BucketEvents]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &next.events); err != nil {
			return fmt.Errorf("import %s: %w", BucketEvents, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
	return nil
}

type identifiable interface {
	EntityID() string
}

func sortedValues[T identifiable](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

func fillMap[T identifiable](buckets map[string]json.RawMessage, name string, dst map[string]T) error {
	raw, ok := buckets[name]
	if !ok || len(raw) == 0 {
		return nil
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("import %s: %w", name, err)
	}
	for _, rec := range records {
		dst[rec.EntityID()] = rec
	}
	return nil
}
