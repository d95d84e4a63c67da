// Package schedule computes revision checkpoints and their due state.
//
// All day arithmetic uses calendar-day differences: timestamps are truncated
// to midnight in the reference time's location before comparing. A checkpoint
// is due when its due date falls on or before today's date, so "due" covers
// both overdue and due-today. Elapsed-hours arithmetic is deliberately not
// used; it makes the due state flip with the time of day.
package schedule

import (
	"errors"
	"math"
	"time"

	"github.com/example/revtrack/pkg/models"
)

// ErrCheckpointNotFound is returned when a toggle names a day offset that
// does not exist in the checkpoint sequence.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// BuildCheckpoints creates the checkpoint sequence for a topic created at
// createdAt: one incomplete checkpoint per offset, due exactly offset days
// after creation, in ascending day order.
func BuildCheckpoints(createdAt time.Time, offsets []int) []models.Checkpoint {
	checkpoints := make([]models.Checkpoint, 0, len(offsets))
	for _, day := range offsets {
		checkpoints = append(checkpoints, models.Checkpoint{
			Day:     day,
			DueDate: createdAt.AddDate(0, 0, day),
		})
	}
	return checkpoints
}

// NextCheckpoint returns the first incomplete checkpoint in stored order.
// The second result is false when every checkpoint is completed, i.e. the
// topic is mastered.
func NextCheckpoint(checkpoints []models.Checkpoint) (models.Checkpoint, bool) {
	for _, cp := range checkpoints {
		if !cp.Completed {
			return cp, true
		}
	}
	return models.Checkpoint{}, false
}

// IsDue reports whether the checkpoint needs attention now: not completed
// and due today or earlier. Completed checkpoints are never due.
func IsDue(cp models.Checkpoint, now time.Time) bool {
	if cp.Completed {
		return false
	}
	return !calendarDate(cp.DueDate, now.Location()).After(calendarDate(now, now.Location()))
}

// DaysUntilDue returns the calendar-day distance from now to the
// checkpoint's due date. Zero means due today, negative means overdue.
func DaysUntilDue(cp models.Checkpoint, now time.Time) int {
	due := calendarDate(cp.DueDate, now.Location())
	today := calendarDate(now, now.Location())
	// Rounding absorbs the odd-length days around DST transitions.
	return int(math.Round(due.Sub(today).Hours() / 24))
}

// ToggleCompletion returns a copy of checkpoints with the entry for day
// flipped. When explicit is non-nil the completion flag is set to that value
// instead of flipped. CompletedAt is stamped with now on completion and
// cleared when the completion is undone. The input slice is never modified.
func ToggleCompletion(checkpoints []models.Checkpoint, day int, explicit *bool, now time.Time) ([]models.Checkpoint, error) {
	idx := -1
	for i, cp := range checkpoints {
		if cp.Day == day {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrCheckpointNotFound
	}

	out := make([]models.Checkpoint, len(checkpoints))
	copy(out, checkpoints)

	completed := !out[idx].Completed
	if explicit != nil {
		completed = *explicit
	}
	out[idx].Completed = completed
	if completed {
		at := now
		out[idx].CompletedAt = &at
	} else {
		out[idx].CompletedAt = nil
	}
	return out, nil
}

// IsMastered reports whether every checkpoint is completed.
func IsMastered(checkpoints []models.Checkpoint) bool {
	for _, cp := range checkpoints {
		if !cp.Completed {
			return false
		}
	}
	return len(checkpoints) > 0
}

// LastCompletedAt returns the most recent completion time across the
// checkpoints. The second result is false when nothing has been completed
// yet; callers conventionally fall back to the topic's CreatedAt.
func LastCompletedAt(checkpoints []models.Checkpoint) (time.Time, bool) {
	var last time.Time
	found := false
	for _, cp := range checkpoints {
		if cp.CompletedAt == nil {
			continue
		}
		if !found || cp.CompletedAt.After(last) {
			last = *cp.CompletedAt
			found = true
		}
	}
	return last, found
}

// calendarDate truncates t to midnight of its calendar date in loc.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
