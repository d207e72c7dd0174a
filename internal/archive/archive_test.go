package archive

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func ref(examID, kind string, at time.Time) RecordRef {
	return RecordRef{ExamID: examID, Kind: kind, At: at}
}

func TestParseKeyRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	in := ref("exam-1", "academic", at)
	key := in.Key()
	if key != "exams/exam-1/academic-20260302T093000.000000000Z.json" {
		t.Fatalf("unexpected key %s", key)
	}
	out, err := ParseKey(key)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.ExamID != "exam-1" || out.Kind != "academic" || !out.At.Equal(at) {
		t.Fatalf("round trip lost data: %+v", out)
	}
}

func TestParseKeyRejectsForeignShapes(t *testing.T) {
	for _, key := range []string{
		"",
		"academic.json",
		"exams/exam-1/academic.json",
		"exams/exam-1/nested/academic-20260302T093000.000000000Z.json",
		"exams/../academic-20260302T093000.000000000Z.json",
		"/etc/passwd",
		"exams/exam-1/academic-notatime.json",
	} {
		if _, err := ParseKey(key); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	record, err := store.Write(ctx, ref("exam-1", "academic", at), []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if record.ExamID != "exam-1" || record.Kind != "academic" || record.Size != int64(len(`{"ok":true}`)) {
		t.Fatalf("unexpected record %+v", record)
	}
	if _, err := store.Write(ctx, ref("exam-1", "academic", at), []byte("x")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on duplicate write, got %v", err)
	}
	payload, err := store.Read(ctx, record.Key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(payload) != `{"ok":true}` {
		t.Fatalf("unexpected payload %q", payload)
	}
	if _, err := store.Read(ctx, ref("exam-1", "academic", at.Add(time.Hour)).Key()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.ShareURL(ctx, record.Key, time.Minute); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	ok, err := store.Delete(ctx, record.Key)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = store.Delete(ctx, record.Key)
	if err != nil || ok {
		t.Fatalf("second delete should report missing: ok=%v err=%v", ok, err)
	}
}

func TestFilesystemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected fs driver, got %s", store.Driver())
	}
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	payload := []byte(`{"exam_id":"exam-1","status":"synced"}`)
	record, err := store.Write(ctx, ref("exam-1", "resources", at), payload)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if record.Checksum == "" {
		t.Fatalf("expected a payload checksum, got %+v", record)
	}
	if _, err := store.Write(ctx, ref("exam-1", "resources", at), payload); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on duplicate write, got %v", err)
	}
	got, err := store.Read(ctx, record.Key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("unexpected payload %q", got)
	}
	records, err := store.List(ctx, "exam-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Key != record.Key || records[0].Checksum != record.Checksum {
		t.Fatalf("listing should return the stored record, got %+v", records)
	}
	if records, err := store.List(ctx, "exam-unknown"); err != nil || len(records) != 0 {
		t.Fatalf("unknown exam should list empty, got %+v err=%v", records, err)
	}
	link, err := store.ShareURL(ctx, record.Key, time.Minute)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if !strings.HasPrefix(link, "file://") || !strings.Contains(link, "exams/exam-1/") {
		t.Fatalf("unexpected share link %s", link)
	}
}

func TestFilesystemStoreRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("new filesystem store: %v", err)
	}
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	for _, bad := range []RecordRef{
		{ExamID: "", Kind: "academic", At: at},
		{ExamID: "exam-1", Kind: "", At: at},
		{ExamID: "../escape", Kind: "academic", At: at},
		{ExamID: "exam-1", Kind: "a/b", At: at},
		{ExamID: `..\escape`, Kind: "academic", At: at},
		{ExamID: "exam-1", Kind: "academic"},
	} {
		if _, err := store.Write(ctx, bad, []byte("x")); err == nil {
			t.Fatalf("expected ref %+v to be rejected", bad)
		}
	}
	if _, err := store.Read(ctx, "../../etc/passwd"); err == nil {
		t.Fatalf("expected traversal read to be rejected")
	}
	if _, err := store.List(ctx, "../.."); err == nil {
		t.Fatalf("expected traversal list to be rejected")
	}
}

func TestMockS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockS3ForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("expected s3 driver, got %s", store.Driver())
	}
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	record, err := store.Write(ctx, ref("exam-9", "students", at), []byte(`{"n":1}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Write(ctx, ref("exam-9", "students", at), []byte(`{"n":2}`)); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on duplicate write, got %v", err)
	}
	payload, err := store.Read(ctx, record.Key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(payload) != `{"n":1}` {
		t.Fatalf("unexpected payload %q", payload)
	}
	if _, err := store.Read(ctx, ref("exam-9", "students", at.Add(time.Hour)).Key()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	records, err := store.List(ctx, "exam-9")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Key != record.Key || records[0].Kind != "students" {
		t.Fatalf("unexpected listing %+v", records)
	}
	link, err := store.ShareURL(ctx, record.Key, time.Minute)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if !strings.Contains(link, record.Key) || !strings.Contains(link, "X-Amz-Signature") {
		t.Fatalf("unexpected share link %s", link)
	}
	ok, err := store.Delete(ctx, record.Key)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = store.Delete(ctx, record.Key)
	if err != nil || ok {
		t.Fatalf("second delete should report missing: ok=%v err=%v", ok, err)
	}
}

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("EXAMCORE_ARCHIVE_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}

	t.Setenv("EXAMCORE_ARCHIVE_DRIVER", "fs")
	t.Setenv("EXAMCORE_ARCHIVE_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected fs driver, got %s", store.Driver())
	}

	t.Setenv("EXAMCORE_ARCHIVE_DRIVER", "s3")
	t.Setenv("EXAMCORE_ARCHIVE_S3_BUCKET", "")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected s3 driver without bucket to fail")
	}

	t.Setenv("EXAMCORE_ARCHIVE_DRIVER", "tape")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}
}

func TestSyncRecorderWritesKeyedRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	rec := NewSyncRecorder(store)
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	rec.SetNow(func() time.Time { return at })

	type record struct {
		ExamID string `json:"exam_id"`
		Status string `json:"status"`
	}
	if err := rec.ArchiveSyncRecord(ctx, "exam-1", "academic", record{ExamID: "exam-1", Status: "synced"}); err != nil {
		t.Fatalf("archive academic: %v", err)
	}
	at = at.Add(time.Second)
	if err := rec.ArchiveSyncRecord(ctx, "exam-1", "resources", record{ExamID: "exam-1", Status: "conflict"}); err != nil {
		t.Fatalf("archive resources: %v", err)
	}
	if err := rec.ArchiveSyncRecord(ctx, "exam-2", "academic", record{ExamID: "exam-2", Status: "synced"}); err != nil {
		t.Fatalf("archive exam-2: %v", err)
	}

	records, err := rec.Records(ctx, "exam-1")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for exam-1, got %d", len(records))
	}
	want := "exams/exam-1/academic-20260302T093000.000000000Z.json"
	if records[0].Key != want {
		t.Fatalf("unexpected key %s, want %s", records[0].Key, want)
	}
	if records[0].Kind != "academic" || records[0].ExamID != "exam-1" {
		t.Fatalf("unexpected record %+v", records[0])
	}

	var got record
	if err := rec.ReadRecord(ctx, records[1].Key, &got); err != nil {
		t.Fatalf("read record: %v", err)
	}
	if got.Status != "conflict" {
		t.Fatalf("unexpected decoded record %+v", got)
	}
}

func TestSyncRecorderRejectsIncompleteRefs(t *testing.T) {
	rec := NewSyncRecorder(NewMemory())
	if err := rec.ArchiveSyncRecord(context.Background(), "", "academic", struct{}{}); err == nil {
		t.Fatalf("expected missing exam id to fail")
	}
	if err := rec.ArchiveSyncRecord(context.Background(), "exam-1", "", struct{}{}); err == nil {
		t.Fatalf("expected missing kind to fail")
	}
}

func TestSyncRecorderSharesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMockS3ForTests()
	rec := NewSyncRecorder(store)
	rec.SetNow(func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) })
	if err := rec.ArchiveSyncRecord(ctx, "exam-1", "students", struct{}{}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	records, err := rec.Records(ctx, "exam-1")
	if err != nil || len(records) != 1 {
		t.Fatalf("records: %+v err=%v", records, err)
	}
	link, err := rec.ShareRecord(ctx, records[0].Key, time.Minute)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if !strings.Contains(link, records[0].Key) {
		t.Fatalf("unexpected share link %s", link)
	}
}
