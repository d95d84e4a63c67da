package topics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/revtrack/internal/schedule"
	"github.com/example/revtrack/internal/storage"
	"github.com/example/revtrack/pkg/models"
)

// fakeStore is an in-memory Store with an optional injected write failure.
type fakeStore struct {
	data     map[string][]byte
	writeErr error
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Read(_ context.Context, key string) ([]byte, error) {
	value, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return value, nil
}

func (s *fakeStore) Write(_ context.Context, key string, value []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes++
	s.data[key] = value
	return nil
}

func fixedClock(t *testing.T, value string) func() time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return func() time.Time { return ts }
}

func loadedRepo(t *testing.T, store storage.Store, opts ...Option) *Repository {
	t.Helper()
	repo := New(store, opts...)
	if err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return repo
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("valid topic", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		repo := loadedRepo(t, store, WithClock(fixedClock(t, "2024-01-01T00:00:00Z")))

		topic, err := repo.Create(context.Background(), "Binary Search", models.CategoryDSA)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if topic.ID == "" {
			t.Error("created topic has empty id")
		}
		if len(topic.Revisions) != len(models.RevisionOffsets) {
			t.Fatalf("got %d checkpoints, want %d", len(topic.Revisions), len(models.RevisionOffsets))
		}
		for i, cp := range topic.Revisions {
			if cp.Day != models.RevisionOffsets[i] {
				t.Errorf("checkpoint %d: Day = %d, want %d", i, cp.Day, models.RevisionOffsets[i])
			}
			if cp.Completed {
				t.Errorf("checkpoint %d: created completed", i)
			}
		}
		if store.writes != 1 {
			t.Errorf("store.writes = %d, want 1", store.writes)
		}
	})

	t.Run("name is trimmed", func(t *testing.T) {
		t.Parallel()
		repo := loadedRepo(t, newFakeStore())
		topic, err := repo.Create(context.Background(), "  Heaps  ", models.CategoryDSA)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if topic.Name != "Heaps" {
			t.Errorf("Name = %q, want %q", topic.Name, "Heaps")
		}
	})

	t.Run("validation failures", func(t *testing.T) {
		t.Parallel()
		repo := loadedRepo(t, newFakeStore())

		tests := []struct {
			name     string
			topic    string
			category models.Category
		}{
			{"empty name", "", models.CategoryDSA},
			{"whitespace name", "   ", models.CategoryDSA},
			{"unknown category", "Tries", models.Category("Networking")},
		}
		for _, tt := range tests {
			_, err := repo.Create(context.Background(), tt.topic, tt.category)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("%s: err = %v, want *ValidationError", tt.name, err)
			}
		}
		if got := len(repo.Topics()); got != 0 {
			t.Errorf("collection has %d topics after failed creates, want 0", got)
		}
	})

	t.Run("unique ids", func(t *testing.T) {
		t.Parallel()
		repo := loadedRepo(t, newFakeStore())
		seen := make(map[string]bool)
		for i := 0; i < 20; i++ {
			topic, err := repo.Create(context.Background(), "Topic", models.CategoryOOP)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if seen[topic.ID] {
				t.Fatalf("duplicate id %q", topic.ID)
			}
			seen[topic.ID] = true
		}
	})
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	repo := loadedRepo(t, store)
	topic, err := repo.Create(context.Background(), "Graphs", models.CategoryDSA)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Delete(context.Background(), topic.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := len(repo.Topics()); got != 0 {
		t.Fatalf("collection has %d topics after delete, want 0", got)
	}

	writesBefore := store.writes
	if err := repo.Delete(context.Background(), topic.ID); err != nil {
		t.Errorf("second Delete: %v, want nil", err)
	}
	if err := repo.Delete(context.Background(), "no-such-id"); err != nil {
		t.Errorf("Delete of unknown id: %v, want nil", err)
	}
	if store.writes != writesBefore {
		t.Errorf("no-op deletes wrote to the store (%d -> %d writes)", writesBefore, store.writes)
	}
}

func TestToggle(t *testing.T) {
	t.Parallel()

	t.Run("completes next checkpoint", func(t *testing.T) {
		t.Parallel()
		repo := loadedRepo(t, newFakeStore(), WithClock(fixedClock(t, "2024-01-03T12:00:00Z")))
		topic, err := repo.Create(context.Background(), "Binary Search", models.CategoryDSA)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if err := repo.Toggle(context.Background(), topic.ID, 2, nil); err != nil {
			t.Fatalf("Toggle: %v", err)
		}
		got, err := repo.Get(topic.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		next, ok := schedule.NextCheckpoint(got.Revisions)
		if !ok {
			t.Fatal("no next checkpoint after one toggle")
		}
		if next.Day != 5 {
			t.Errorf("next.Day = %d, want 5", next.Day)
		}
	})

	t.Run("missing topic", func(t *testing.T) {
		t.Parallel()
		repo := loadedRepo(t, newFakeStore())
		err := repo.Toggle(context.Background(), "ghost", 2, nil)
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Kind != "topic" {
			t.Errorf("err = %v, want topic *NotFoundError", err)
		}
	})

	t.Run("missing checkpoint day", func(t *testing.T) {
		t.Parallel()
		repo := loadedRepo(t, newFakeStore())
		topic, err := repo.Create(context.Background(), "Graphs", models.CategoryDSA)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		err = repo.Toggle(context.Background(), topic.ID, 99, nil)
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Kind != "checkpoint" {
			t.Errorf("err = %v, want checkpoint *NotFoundError", err)
		}
	})
}

func TestPersistenceFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	repo := loadedRepo(t, store)

	store.writeErr = errors.New("disk full")
	topic, err := repo.Create(context.Background(), "B-Trees", models.CategoryDSA)
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PersistenceError", err)
	}

	// The mutation stands in memory for the session.
	if _, err := repo.Get(topic.ID); err != nil {
		t.Errorf("topic missing from snapshot after failed persist: %v", err)
	}

	// The next successful mutation persists the whole collection.
	store.writeErr = nil
	if _, err := repo.Create(context.Background(), "Tries", models.CategoryDSA); err != nil {
		t.Fatalf("Create after store recovery: %v", err)
	}
	var persisted []models.Topic
	if err := json.Unmarshal(store.data[DefaultKey], &persisted); err != nil {
		t.Fatalf("unmarshal persisted collection: %v", err)
	}
	if len(persisted) != 2 {
		t.Errorf("persisted %d topics, want 2", len(persisted))
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("seed runs only on absent key", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		clock := fixedClock(t, "2024-05-01T00:00:00Z")
		repo := loadedRepo(t, store, WithSeed(DemoSeed), WithClock(clock))
		if got := len(repo.Topics()); got != 3 {
			t.Fatalf("seeded %d topics, want 3", got)
		}

		// Delete everything, reload: the key exists now, so no reseed.
		for _, topic := range repo.Topics() {
			if err := repo.Delete(context.Background(), topic.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
		}
		repo2 := loadedRepo(t, store, WithSeed(DemoSeed), WithClock(clock))
		if got := len(repo2.Topics()); got != 0 {
			t.Errorf("reload seeded %d topics over an existing empty collection", got)
		}
	})

	t.Run("round trip through the store", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		repo := loadedRepo(t, store, WithClock(fixedClock(t, "2024-01-01T00:00:00Z")))
		created, err := repo.Create(context.Background(), "CAP Theorem", models.CategorySystemDesign)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := repo.Toggle(context.Background(), created.ID, 2, nil); err != nil {
			t.Fatalf("Toggle: %v", err)
		}

		repo2 := loadedRepo(t, store)
		got, err := repo2.Get(created.ID)
		if err != nil {
			t.Fatalf("Get after reload: %v", err)
		}
		if got.Name != "CAP Theorem" || got.Category != models.CategorySystemDesign {
			t.Errorf("reloaded topic = %q/%q", got.Name, got.Category)
		}
		if !got.Revisions[0].Completed || got.Revisions[0].CompletedAt == nil {
			t.Error("completion state lost across reload")
		}
	})

	t.Run("corrupt data falls back to empty", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		store.data[DefaultKey] = []byte("{not json")

		repo := New(store)
		err := repo.Load(context.Background())
		var corrupt *CorruptDataError
		if !errors.As(err, &corrupt) {
			t.Fatalf("err = %v, want *CorruptDataError", err)
		}
		if got := len(repo.Topics()); got != 0 {
			t.Errorf("collection has %d topics after corrupt load, want 0", got)
		}
		// Still usable.
		if _, err := repo.Create(context.Background(), "Recovery", models.CategoryOOP); err != nil {
			t.Errorf("Create after corrupt load: %v", err)
		}
	})
}

func TestTopicsReturnsCopies(t *testing.T) {
	t.Parallel()

	repo := loadedRepo(t, newFakeStore())
	if _, err := repo.Create(context.Background(), "Dijkstra", models.CategoryDSA); err != nil {
		t.Fatalf("Create: %v", err)
	}

	snapshot := repo.Topics()
	snapshot[0].Name = "mutated"
	snapshot[0].Revisions[0].Completed = true

	fresh := repo.Topics()
	if fresh[0].Name != "Dijkstra" {
		t.Error("mutating a returned topic leaked into the snapshot")
	}
	if fresh[0].Revisions[0].Completed {
		t.Error("mutating a returned checkpoint leaked into the snapshot")
	}
}

func TestDueTopics(t *testing.T) {
	t.Parallel()

	clock := fixedClock(t, "2024-01-03T12:00:00Z")
	repo := loadedRepo(t, newFakeStore(), WithClock(func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}))

	fresh, err := repo.Create(context.Background(), "Due Topic", models.CategoryDSA)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mastered, err := repo.Create(context.Background(), "Mastered Topic", models.CategoryOOP)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, day := range models.RevisionOffsets {
		if err := repo.Toggle(context.Background(), mastered.ID, day, nil); err != nil {
			t.Fatalf("Toggle: %v", err)
		}
	}

	now := clock()
	due := repo.DueTopics(now)
	if len(due) != 1 || due[0].ID != fresh.ID {
		t.Fatalf("DueTopics = %d topics, want exactly the fresh one", len(due))
	}
	if got := repo.DueCount(now); got != 1 {
		t.Errorf("DueCount = %d, want 1", got)
	}
}
