package app

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestRunStore(t *testing.T) (*RunStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.json")
	store, err := NewRunStore(path)
	if err != nil {
		t.Fatal(err)
	}
	return store, path
}

func TestRunStore_CheckpointNowPersists(t *testing.T) {
	store, path := newTestRunStore(t)

	snap := RunSnapshot{
		ID:        "run-1",
		Key:       "acme/widget",
		Model:     "gpt-4o",
		State:     StateAnalyzing,
		StartedAt: time.Now().UTC(),
	}
	if err := store.CheckpointNow(snap); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewRunStore(path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reloaded.Get("acme/widget")
	if !ok {
		t.Fatal("snapshot must survive a reload")
	}
	if got.ID != "run-1" || got.State != StateAnalyzing {
		t.Fatalf("unexpected reloaded snapshot: %+v", got)
	}
}

func TestRunStore_CheckpointThrottles(t *testing.T) {
	store, path := newTestRunStore(t)

	first := RunSnapshot{Key: "acme/widget", State: StateAnalyzing, CurrentChunk: 1}
	if err := store.CheckpointNow(first); err != nil {
		t.Fatal(err)
	}

	// Within the throttle window the disk copy stays stale but the
	// in-memory view advances.
	second := first
	second.CurrentChunk = 2
	if err := store.Checkpoint(second); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get("acme/widget")
	if got.CurrentChunk != 2 {
		t.Fatalf("in-memory view must update immediately, got chunk %d", got.CurrentChunk)
	}

	reloaded, err := NewRunStore(path)
	if err != nil {
		t.Fatal(err)
	}
	onDisk, _ := reloaded.Get("acme/widget")
	if onDisk.CurrentChunk != 1 {
		t.Fatalf("throttled checkpoint must not hit disk, got chunk %d", onDisk.CurrentChunk)
	}

	// A transition write always flushes, carrying the latest state along.
	third := second
	third.State = StateDone
	if err := store.CheckpointNow(third); err != nil {
		t.Fatal(err)
	}
	reloaded, err = NewRunStore(path)
	if err != nil {
		t.Fatal(err)
	}
	onDisk, _ = reloaded.Get("acme/widget")
	if onDisk.State != StateDone || onDisk.CurrentChunk != 2 {
		t.Fatalf("transition flush must persist everything: %+v", onDisk)
	}
}

func TestRunState_Terminal(t *testing.T) {
	if !StateDone.Terminal() || !StateFailed.Terminal() {
		t.Error("done and failed are terminal")
	}
	if StatePlanning.Terminal() || StateAnalyzing.Terminal() || StateSynthesizing.Terminal() {
		t.Error("in-flight states are not terminal")
	}
}
