package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/label-scan/internal/kv"
	"github.com/eleven-am/label-scan/internal/verdict"
)

const (
	DefaultLimit = 30
	storageKey   = "history"
)

// Entry is one completed analysis. Entries are never changed after they are
// recorded.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Result    verdict.Result `json:"result"`
	Thumbnail []byte         `json:"thumbnail,omitempty"`
}

// Store keeps the most recent entries, newest first, as one JSON array.
type Store struct {
	kv     kv.Store
	limit  int
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

func NewStore(backing kv.Store, limit int, logger *slog.Logger) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     backing,
		limit:  limit,
		logger: logger.With("component", "history"),
		now:    time.Now,
	}
}

func (s *Store) Add(ctx context.Context, result verdict.Result, thumbnail []byte) (*Entry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}

	entry := Entry{
		ID:        id.String(),
		Timestamp: s.now().UTC(),
		Result:    result,
		Thumbnail: thumbnail,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	entries = append([]Entry{entry}, entries...)
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}

	if err := s.save(ctx, entries); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, storageKey)
}

func (s *Store) Limit() int {
	return s.limit
}

func (s *Store) load(ctx context.Context) ([]Entry, error) {
	raw, err := s.kv.Get(ctx, storageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn("discarding unreadable history", "error", err)
		return []Entry{}, nil
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := s.kv.Set(ctx, storageKey, string(data)); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
