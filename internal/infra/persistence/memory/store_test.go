package memory

import (
	"context"
	"testing"
	"time"

	"examcore/pkg/domain"
)

func TestStoreStampsAndClones(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.SetNow(func() time.Time { return fixed })

	exam := s.SeedExam(domain.Exam{SubjectID: "sub-1", Type: domain.ExamWritten, Materials: []domain.MaterialNeed{{Name: "answer booklet", Type: "paper", Quantity: 1, Required: true}}})
	if exam.ID == "" {
		t.Fatalf("expected generated ID")
	}
	if !exam.CreatedAt.Equal(fixed) || !exam.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected stamped timestamps, got %v / %v", exam.CreatedAt, exam.UpdatedAt)
	}

	got, err := s.GetExam(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("get exam: %v", err)
	}
	got.Materials[0].Name = "mutated"
	again, err := s.GetExam(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("get exam: %v", err)
	}
	if again.Materials[0].Name != "answer booklet" {
		t.Fatalf("stored exam mutated through returned clone")
	}
}

func TestStoreNotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.GetExam(context.Background(), "missing"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetSessionRoom(context.Background(), "missing", "room-1"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindRegistration(context.Background(), "exam-1", "student-1"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreHonorsContextCancellation(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GetExam(ctx, "x"); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestListAvailableRoomsOrdering(t *testing.T) {
	s := NewStore()
	s.SeedRoom(domain.Room{Base: domain.Base{ID: "room-b"}, Type: domain.RoomClassroom, Capacity: 40, Available: true})
	s.SeedRoom(domain.Room{Base: domain.Base{ID: "room-a"}, Type: domain.RoomClassroom, Capacity: 30, Available: true})
	s.SeedRoom(domain.Room{Base: domain.Base{ID: "room-c"}, Type: domain.RoomClassroom, Capacity: 30, Available: false})
	s.SeedRoom(domain.Room{Base: domain.Base{ID: "room-d"}, Type: domain.RoomLaboratory, Capacity: 50, Available: true})

	rooms, err := s.ListAvailableRooms(context.Background(), domain.RoomClassroom, 25)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != "room-a" || rooms[1].ID != "room-b" {
		t.Fatalf("expected capacity ordering room-a, room-b; got %s, %s", rooms[0].ID, rooms[1].ID)
	}
}

func TestListGradesMostRecentFirst(t *testing.T) {
	s := NewStore()
	old := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	s.SeedGrade(domain.Grade{Base: domain.Base{ID: "g-old"}, StudentID: "st-1", SubjectID: "sub-1", Value: 8, Scale: 20, Published: true, RecordedAt: old})
	s.SeedGrade(domain.Grade{Base: domain.Base{ID: "g-new"}, StudentID: "st-1", SubjectID: "sub-1", Value: 14, Scale: 20, Published: true, RecordedAt: recent})

	grades, err := s.ListGrades(context.Background(), "st-1", "sub-1")
	if err != nil {
		t.Fatalf("list grades: %v", err)
	}
	if len(grades) != 2 || grades[0].ID != "g-new" {
		t.Fatalf("expected most recent grade first, got %+v", grades)
	}
}

func TestResourceReservationWindowFilter(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mustInsert := func(id string, start, end time.Time) {
		_, err := s.InsertReservation(context.Background(), domain.Reservation{
			Base:         domain.Base{ID: id},
			SessionID:    "sess-1",
			ResourceType: domain.ResourceEquipment,
			ResourceID:   "eq-1",
			Quantity:     1,
			StartsAt:     start,
			EndsAt:       end,
		})
		if err != nil {
			t.Fatalf("insert reservation: %v", err)
		}
	}
	mustInsert("res-overlap", base, base.Add(2*time.Hour))
	mustInsert("res-clear", base.Add(3*time.Hour), base.Add(4*time.Hour))

	got, err := s.ListResourceReservations(context.Background(), domain.ResourceEquipment, "eq-1", base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(got) != 1 || got[0].ID != "res-overlap" {
		t.Fatalf("expected only overlapping reservation, got %+v", got)
	}
}

func TestEventLogRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, id := range []string{"ev-1", "ev-2", "ev-3"} {
		if err := s.AppendEvent(ctx, domain.SyncEvent{ID: id, Module: domain.ModuleExams, Action: "updated", Status: domain.EventPending}); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}
	if err := s.UpdateEventStatus(ctx, "ev-2", domain.EventFailed, 2, "handler refused"); err != nil {
		t.Fatalf("update event: %v", err)
	}
	events, err := s.ListRecentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0].ID != "ev-3" || events[1].ID != "ev-2" {
		t.Fatalf("expected newest-first window, got %+v", events)
	}
	if events[1].Status != domain.EventFailed || events[1].RetryCount != 2 || events[1].Error != "handler refused" {
		t.Fatalf("expected updated event fields, got %+v", events[1])
	}
	if err := s.UpdateEventStatus(ctx, "missing", domain.EventCompleted, 0, ""); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := NewStore()
	exam := s.SeedExam(domain.Exam{Base: domain.Base{ID: "exam-1"}, SubjectID: "sub-1", Type: domain.ExamOral})
	s.SeedRoom(domain.Room{Base: domain.Base{ID: "room-1"}, Type: domain.RoomMeetingRoom, Capacity: 12, Available: true})
	if err := s.AppendEvent(context.Background(), domain.SyncEvent{ID: "ev-1", Module: domain.ModuleExams, Action: "created", Status: domain.EventCompleted}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	buckets, err := s.ExportState()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(buckets) != len(Buckets()) {
		t.Fatalf("expected %d buckets, got %d", len(Buckets()), len(buckets))
	}

	restored := NewStore()
	if err := restored.ImportState(buckets); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, err := restored.GetExam(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("get exam after import: %v", err)
	}
	if got.SubjectID != "sub-1" || got.Type != domain.ExamOral {
		t.Fatalf("unexpected exam after import: %+v", got)
	}
	events, err := restored.ListRecentEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("list events after import: %v", err)
	}
	if len(events) != 1 || events[0].ID != "ev-1" {
		t.Fatalf("expected event log restored, got %+v", events)
	}
}
