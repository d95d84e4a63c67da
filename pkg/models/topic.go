package models

import (
	"strings"
	"time"
)

// Category classifies a topic. The set is closed: adding a category is a
// schema change, not runtime data.
type Category string

const (
	CategoryDSA          Category = "DSA"
	CategorySystemDesign Category = "System Design"
	CategoryOOP          Category = "OOPs"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryDSA, CategorySystemDesign, CategoryOOP}

// RevisionOffsets is the fixed revision schedule: days after creation at
// which a topic must be revised. Every topic gets exactly one checkpoint
// per offset.
var RevisionOffsets = []int{2, 5, 12, 25, 40, 60}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s against the known categories, ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, bool) {
	trimmed := strings.TrimSpace(s)
	for _, known := range Categories {
		if strings.EqualFold(trimmed, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Checkpoint is one scheduled revision of a topic.
type Checkpoint struct {
	// Day is the offset in days from the topic's CreatedAt. Unique within
	// a topic, ascending in the stored sequence.
	Day       int  `json:"day"`
	Completed bool `json:"completed"`
	// DueDate is CreatedAt + Day days, fixed at topic creation.
	DueDate time.Time `json:"dueDate"`
	// CompletedAt records when the checkpoint was marked complete. Nil
	// while incomplete; cleared again if the completion is undone.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Topic is a user-tracked subject with a fixed revision schedule.
type Topic struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Category  Category     `json:"category"`
	CreatedAt time.Time    `json:"createdAt"`
	Revisions []Checkpoint `json:"revisions"`
}

// Clone returns a deep copy of the topic. Callers holding a clone cannot
// reach the repository's snapshot through it.
func (t Topic) Clone() Topic {
	out := t
	out.Revisions = make([]Checkpoint, len(t.Revisions))
	copy(out.Revisions, t.Revisions)
	for i, cp := range t.Revisions {
		if cp.CompletedAt != nil {
			at := *cp.CompletedAt
			out.Revisions[i].CompletedAt = &at
		}
	}
	return out
}
