package app

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryRecord is one completed analysis kept for later viewing.
type HistoryRecord struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Model     string    `json:"model"`
	Chunked   bool      `json:"chunked"`
	Report    string    `json:"report"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists finished reports to a JSON file. Only the final
// report is durable; chunks and intermediate summaries never are.
type HistoryStore struct {
	path string

	mu      sync.Mutex
	records map[string]HistoryRecord
}

func NewHistoryStore(path string) (*HistoryStore, error) {
	store := &HistoryStore{path: path, records: map[string]HistoryRecord{}}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *HistoryStore) load() error {
	if s.path == "" {
		return errors.New("history store path required")
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
	return json.Unmarshal(data, &s.records)
}

// Add stores a finished report and returns its id.
func (s *HistoryStore) Add(key, model, report string, chunked bool) (string, error) {
	rec := HistoryRecord{
		ID:        uuid.NewString(),
		Key:       key,
		Model:     model,
		Chunked:   chunked,
		Report:    report,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return rec.ID, s.flushLocked()
}

func (s *HistoryStore) flushLocked() error {
	payload, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, payload, 0o644)
}

// Get returns one record by id.
func (s *HistoryStore) Get(id string) (HistoryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// List returns all records, most recent first.
func (s *HistoryStore) List() []HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
