package runs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/haasonsaas/operator/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, rec := range []*RunRecord{
		{
			ID:        "run-1",
			Goal:      "first goal",
			SessionID: "sess-1",
			ContextID: "ctx-1",
			Outcome:   OutcomeComplete,
			Steps: []models.Step{
				{Text: "go", Reasoning: "r", Tool: models.ToolGoto, Instruction: "https://example.com"},
				{Text: "done", Reasoning: "r", Tool: models.ToolClose},
			},
		},
		{
			ID:        "run-2",
			Goal:      "second goal",
			SessionID: "sess-2",
			Outcome:   OutcomeError,
			Error:     "planning failed",
		},
	} {
		rec.StartedAt = base.Add(time.Duration(i) * time.Hour)
		rec.FinishedAt = rec.StartedAt.Add(time.Minute)
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record %s: %v", rec.ID, err)
		}
	}

	records, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("listed %d records, want 2", len(records))
	}

	// Newest first.
	if records[0].ID != "run-2" || records[1].ID != "run-1" {
		t.Errorf("order = %s, %s", records[0].ID, records[1].ID)
	}
	if records[0].Outcome != OutcomeError || records[0].Error != "planning failed" {
		t.Errorf("failed run = %+v", records[0])
	}

	got := records[1]
	if got.Goal != "first goal" || got.SessionID != "sess-1" || got.ContextID != "ctx-1" {
		t.Errorf("record = %+v", got)
	}
	if len(got.Steps) != 2 || got.Steps[0].Tool != models.ToolGoto || got.Steps[1].Tool != models.ToolClose {
		t.Errorf("steps = %+v", got.Steps)
	}
}

func TestListLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		rec := &RunRecord{
			ID:         string(rune('a' + i)),
			Goal:       "g",
			SessionID:  "s",
			Outcome:    OutcomeComplete,
			StartedAt:  base.Add(time.Duration(i) * time.Second),
			FinishedAt: base.Add(time.Duration(i)*time.Second + time.Second),
		}
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	records, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("listed %d records, want 2", len(records))
	}
}

func TestNilStoreIsNoOp(t *testing.T) {
	var store *Store
	if err := store.Record(context.Background(), &RunRecord{ID: "x"}); err != nil {
		t.Errorf("nil store Record: %v", err)
	}
	records, err := store.List(context.Background(), 10)
	if err != nil || records != nil {
		t.Errorf("nil store List = %v, %v", records, err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("nil store Close: %v", err)
	}
}
