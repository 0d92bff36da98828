package sqlite

import (
	"context"
	"testing"

	"github.com/agentforge/previewd/internal/history"
)

func TestRecordStartAndFinish(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()

	rec := &history.Record{
		RunID:      "previewd_run_abc123",
		Port:       8002,
		Workdir:    "/tmp/previewd_run_abc123",
		InstallCmd: "pip install -r requirements.txt",
		RunCmd:     "streamlit run app.py",
		Status:     "created",
	}
	if err := store.RecordStart(ctx, rec); err != nil {
		t.Fatal(err)
	}

	records, err := store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Status != "created" {
		t.Errorf("status = %q", records[0].Status)
	}
	if records[0].FinishedAt != nil {
		t.Error("finished_at set before finish")
	}
	if records[0].ExitCode != -1 {
		t.Errorf("exit code = %d before finish", records[0].ExitCode)
	}

	if err := store.RecordFinish(ctx, rec.RunID, "terminated", 0); err != nil {
		t.Fatal(err)
	}

	records, err = store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if records[0].Status != "terminated" {
		t.Errorf("status = %q after finish", records[0].Status)
	}
	if records[0].ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", records[0].ExitCode)
	}
	if records[0].FinishedAt == nil {
		t.Error("finished_at not set")
	}
}

func TestList_OrderAndLimit(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		rec := &history.Record{
			RunID:  "run-" + string(rune('a'+i)),
			Port:   8100 + i,
			Status: "created",
		}
		if err := store.RecordStart(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.List(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

func TestRecordFinish_UnknownRunIsNoop(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.RecordFinish(context.Background(), "missing", "terminated", 0); err != nil {
		t.Errorf("finish on unknown run errored: %v", err)
	}
}
