package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"examcore/internal/infra/persistence/memory"
	"examcore/internal/infra/persistence/postgres/testutil"
	"examcore/pkg/domain"
)

func TestNewStoreHydratesSnapshot(t *testing.T) {
	db, conn := testutil.NewStubDB()
	seed := memory.NewStore()
	seed.SeedExam(domain.Exam{Base: domain.Base{ID: "exam-1"}, SubjectID: "sub-1", Type: domain.ExamWritten})
	buckets, err := seed.ExportState()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for bucket, payload := range buckets {
		conn.Tables["state"] = append(conn.Tables["state"], map[string]any{
			"bucket":  bucket,
			"payload": []byte(payload),
		})
	}

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	exam, err := store.GetExam(context.Background(), "exam-1")
	if err != nil {
		t.Fatalf("get exam after hydration: %v", err)
	}
	if exam.SubjectID != "sub-1" {
		t.Fatalf("unexpected exam: %+v", exam)
	}
}

func TestMutationsPersistSnapshot(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	store.SeedExam(domain.Exam{Base: domain.Base{ID: "exam-1"}})
	if _, err := store.InsertRegistration(ctx, domain.Registration{
		Base:      domain.Base{ID: "reg-1"},
		ExamID:    "exam-1",
		StudentID: "st-1",
		Status:    domain.RegistrationRegistered,
	}); err != nil {
		t.Fatalf("insert registration: %v", err)
	}

	var payload []byte
	for _, row := range conn.Tables["state"] {
		if row["bucket"] == memory.BucketRegistrations {
			payload, _ = row["payload"].([]byte)
		}
	}
	if payload == nil {
		t.Fatalf("registrations bucket not persisted; tables: %v", conn.Tables)
	}
	var regs []domain.Registration
	if err := json.Unmarshal(payload, &regs); err != nil {
		t.Fatalf("decode registrations bucket: %v", err)
	}
	if len(regs) != 1 || regs[0].ID != "reg-1" {
		t.Fatalf("persisted registrations = %+v", regs)
	}
}

func TestFlushPersistsSeededState(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store.SeedRoom(domain.Room{Base: domain.Base{ID: "room-1"}, Type: domain.RoomClassroom, Capacity: 30, Available: true})
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	found := false
	for _, row := range conn.Tables["state"] {
		if row["bucket"] == memory.BucketRooms {
			found = true
		}
	}
	if !found {
		t.Fatalf("rooms bucket missing after flush")
	}
}

func TestNewStoreFailsWhenUnreachable(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore(""); err == nil {
		t.Fatalf("expected ping failure")
	}
}
