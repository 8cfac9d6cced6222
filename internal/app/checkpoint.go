package app

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunState is the orchestration state of one analysis run.
type RunState string

const (
	StatePlanning     RunState = "planning"
	StateAnalyzing    RunState = "analyzing"
	StateSynthesizing RunState = "synthesizing"
	StateDone         RunState = "done"
	StateFailed       RunState = "failed"
)

// Terminal reports whether a run in this state is finished.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// RunSnapshot is the durable view of one run, persisted so a crash between
// rounds can at least report what happened instead of hanging silently.
type RunSnapshot struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	Model        string    `json:"model"`
	State        RunState  `json:"state"`
	CurrentChunk int       `json:"current_chunk"`
	TotalChunks  int       `json:"total_chunks"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RunStore persists run snapshots to a single JSON file. Checkpoint is
// rate-limited so per-token progress updates do not hammer the disk;
// CheckpointNow always writes and is the call site for state transitions.
type RunStore struct {
	path     string
	throttle time.Duration

	mu        sync.Mutex
	runs      map[string]RunSnapshot
	lastWrite time.Time
}

func NewRunStore(path string) (*RunStore, error) {
	store := &RunStore{
		path:     path,
		throttle: 500 * time.Millisecond,
		runs:     map[string]RunSnapshot{},
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *RunStore) load() error {
	if s.path == "" {
		return errors.New("run store path required")
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.runs)
}

// Checkpoint records an incremental update, skipping the disk write when one
// happened recently. The in-memory view is always updated.
func (s *RunStore) Checkpoint(snap RunSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[snap.Key] = snap
	if time.Since(s.lastWrite) < s.throttle {
		return nil
	}
	return s.flushLocked()
}

// CheckpointNow records a state transition; these are always flushed.
func (s *RunStore) CheckpointNow(snap RunSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[snap.Key] = snap
	return s.flushLocked()
}

func (s *RunStore) flushLocked() error {
	payload, err := json.MarshalIndent(s.runs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return err
	}
	s.lastWrite = time.Now()
	return nil
}

// Get returns the persisted snapshot for a run key.
func (s *RunStore) Get(key string) (RunSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.runs[key]
	return snap, ok
}

// List returns every known snapshot.
func (s *RunStore) List() []RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunSnapshot, 0, len(s.runs))
	for _, snap := range s.runs {
		out = append(out, snap)
	}
	return out
}
