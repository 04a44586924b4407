package history

import (
	"context"
	"encoding/json"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eleven-am/label-scan/internal/kv"
	"github.com/eleven-am/label-scan/internal/verdict"
)

func newBacking(t *testing.T) *kv.GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := kv.NewGormStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func result(confidence int) verdict.Result {
	return verdict.Result{
		Status:      verdict.StatusHalal,
		Reason:      "ok",
		Ingredients: []verdict.Ingredient{},
		Confidence:  confidence,
	}
}

func TestStore_EmptyList(t *testing.T) {
	s := NewStore(newBacking(t), 0, nil)

	entries, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %d", len(entries))
	}
	if s.Limit() != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, s.Limit())
	}
}

func TestStore_Bound(t *testing.T) {
	backing := newBacking(t)
	s := NewStore(backing, 30, nil)
	ctx := context.Background()

	for i := 1; i <= 35; i++ {
		if _, err := s.Add(ctx, result(i), nil); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	raw, err := backing.Get(ctx, storageKey)
	if err != nil {
		t.Fatal(err)
	}
	var persisted []Entry
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		t.Fatalf("persisted history is not a JSON array: %v", err)
	}
	if len(persisted) != 30 {
		t.Fatalf("expected 30 entries, got %d", len(persisted))
	}

	for i, e := range persisted {
		if want := 35 - i; e.Result.Confidence != want {
			t.Errorf("position %d: expected entry %d, got %d", i, want, e.Result.Confidence)
		}
	}
}

func TestStore_NewestFirstWithUniqueIDs(t *testing.T) {
	s := NewStore(newBacking(t), 5, nil)
	ctx := context.Background()

	first, _ := s.Add(ctx, result(1), []byte("thumb"))
	second, _ := s.Add(ctx, result(2), nil)

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Error("expected newest entry first")
	}
	if first.ID == second.ID {
		t.Error("ids should be unique")
	}
	if string(entries[1].Thumbnail) != "thumb" {
		t.Errorf("expected thumbnail to round trip, got %q", entries[1].Thumbnail)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(newBacking(t), 5, nil)
	ctx := context.Background()

	s.Add(ctx, result(1), nil)
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	entries, _ := s.List(ctx)
	if len(entries) != 0 {
		t.Errorf("expected empty history after clear, got %d", len(entries))
	}
}

func TestStore_CorruptHistoryIsReset(t *testing.T) {
	backing := newBacking(t)
	ctx := context.Background()
	backing.Set(ctx, storageKey, "{not json")

	s := NewStore(backing, 5, nil)
	if _, err := s.Add(ctx, result(7), nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	entries, _ := s.List(ctx)
	if len(entries) != 1 || entries[0].Result.Confidence != 7 {
		t.Errorf("expected a fresh history with one entry, got %+v", entries)
	}
}
