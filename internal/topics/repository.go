// Package topics owns the canonical in-memory topic collection and mediates
// every structural mutation. Each mutation produces a new snapshot and writes
// the full collection to the persistent store before returning.
package topics

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/revtrack/internal/schedule"
	"github.com/example/revtrack/internal/storage"
	"github.com/example/revtrack/pkg/models"
)

// DefaultKey is the store key the collection is persisted under.
const DefaultKey = "revision-topics"

// SeedFunc produces the initial collection for a store that has never been
// written. Seeding is a demo convenience, not a correctness concern.
type SeedFunc func(now time.Time) []models.Topic

// EmptySeed starts with no topics.
func EmptySeed(time.Time) []models.Topic { return nil }

// Repository mediates access to the topic collection. The bot handlers and
// the reminder job both call in, so the snapshot is guarded by a mutex.
type Repository struct {
	store storage.Store
	key   string
	seed  SeedFunc
	clock func() time.Time

	mu     sync.Mutex
	topics []models.Topic
}

// Option configures a Repository.
type Option func(*Repository)

// WithKey overrides the store key.
func WithKey(key string) Option {
	return func(r *Repository) { r.key = key }
}

// WithSeed sets the collection used on first-ever load.
func WithSeed(seed SeedFunc) Option {
	return func(r *Repository) { r.seed = seed }
}

// WithClock overrides the time source. Tests use this to pin "now".
func WithClock(clock func() time.Time) Option {
	return func(r *Repository) { r.clock = clock }
}

// New creates a Repository over the given store. Call Load before use.
func New(store storage.Store, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		key:   DefaultKey,
		seed:  EmptySeed,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads the persisted collection into memory. A store that has never
// been written triggers the seed. A payload that fails to decode yields an
// empty collection and a *CorruptDataError; the repository stays usable.
func (r *Repository) Load(ctx context.Context) error {
	raw, err := r.store.Read(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		seeded := r.seed(r.clock())
		r.mu.Lock()
		r.topics = seeded
		r.mu.Unlock()
		if len(seeded) == 0 {
			return nil
		}
		return r.persist(ctx, "load")
	}
	if err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}

	var loaded []models.Topic
	if err := json.Unmarshal(raw, &loaded); err != nil {
		r.mu.Lock()
		r.topics = nil
		r.mu.Unlock()
		return &CorruptDataError{Err: err}
	}

	r.mu.Lock()
	r.topics = loaded
	r.mu.Unlock()
	return nil
}

// Create validates the input, builds the checkpoint schedule and prepends
// the new topic to the collection. The returned topic is a copy.
func (r *Repository) Create(ctx context.Context, name string, category models.Category) (models.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Topic{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !category.Valid() {
		return models.Topic{}, &ValidationError{Field: "category", Reason: "unknown category " + string(category)}
	}

	now := r.clock()
	topic := models.Topic{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  category,
		CreatedAt: now,
		Revisions: schedule.BuildCheckpoints(now, models.RevisionOffsets),
	}

	r.mu.Lock()
	r.topics = append([]models.Topic{topic}, r.topics...)
	r.mu.Unlock()

	if err := r.persist(ctx, "create"); err != nil {
		return topic.Clone(), err
	}
	return topic.Clone(), nil
}

// Delete removes the topic with the given id along with all its checkpoints.
// Deleting an id that does not exist is a no-op, not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	kept := r.topics[:0:0]
	removed := false
	for _, t := range r.topics {
		if t.ID == id {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	r.topics = kept
	r.mu.Unlock()

	if !removed {
		return nil
	}
	return r.persist(ctx, "delete")
}

// Toggle flips (or, when explicit is non-nil, sets) the completion flag of
// the checkpoint at the given day offset within the topic.
func (r *Repository) Toggle(ctx context.Context, topicID string, day int, explicit *bool) error {
	now := r.clock()

	r.mu.Lock()
	idx := -1
	for i, t := range r.topics {
		if t.ID == topicID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return &NotFoundError{Kind: "topic", ID: topicID}
	}

	updated, err := schedule.ToggleCompletion(r.topics[idx].Revisions, day, explicit, now)
	if err != nil {
		r.mu.Unlock()
		return &NotFoundError{Kind: "checkpoint", ID: strconv.Itoa(day)}
	}
	r.topics[idx].Revisions = updated
	r.mu.Unlock()

	return r.persist(ctx, "toggle")
}

// Topics returns a deep copy of the current collection in stored order.
func (r *Repository) Topics() []models.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Topic, len(r.topics))
	for i, t := range r.topics {
		out[i] = t.Clone()
	}
	return out
}

// Get returns a copy of the topic with the given id.
func (r *Repository) Get(id string) (models.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.topics {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return models.Topic{}, &NotFoundError{Kind: "topic", ID: id}
}

// DueTopics returns copies of the topics whose next checkpoint is due at
// now. Mastered topics are never due.
func (r *Repository) DueTopics(now time.Time) []models.Topic {
	var due []models.Topic
	for _, t := range r.Topics() {
		next, ok := schedule.NextCheckpoint(t.Revisions)
		if ok && schedule.IsDue(next, now) {
			due = append(due, t)
		}
	}
	return due
}

// DueCount returns the number of topics due at now.
func (r *Repository) DueCount(now time.Time) int {
	return len(r.DueTopics(now))
}

// persist writes the full collection to the store. On failure the in-memory
// snapshot stays authoritative and the caller gets a *PersistenceError.
func (r *Repository) persist(ctx context.Context, op string) error {
	r.mu.Lock()
	raw, err := json.Marshal(r.topics)
	r.mu.Unlock()
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	if err := r.store.Write(ctx, r.key, raw); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}
