// Package stats computes read-only projections over a topic snapshot. Every
// call recomputes from scratch; there is no cached state to invalidate.
package stats

import (
	"time"

	"github.com/example/revtrack/internal/schedule"
	"github.com/example/revtrack/pkg/models"
)

// DayCount is the number of completed revisions attributed to one calendar
// date.
type DayCount struct {
	Date  time.Time
	Count int
}

// Summary aggregates the headline numbers shown by the stats command.
type Summary struct {
	Topics               int
	Due                  int
	Mastered             int
	CompletedCheckpoints int
	TotalCheckpoints     int
}

// CategoryDistribution counts topics per category. Every category of the
// closed enumeration is present in the result, zero when unused.
func CategoryDistribution(topics []models.Topic) map[models.Category]int {
	dist := make(map[models.Category]int, len(models.Categories))
	for _, c := range models.Categories {
		dist[c] = 0
	}
	for _, t := range topics {
		dist[t.Category]++
	}
	return dist
}

// CompletionsByDay counts completed checkpoints per calendar date over the
// inclusive window [windowStart, windowEnd], one entry per date in order.
//
// Checkpoints attribute to the calendar date of their DueDate, not to when
// the user marked them complete: a revision done late still counts against
// its scheduled date. This keeps the chart consistent with the schedule
// rather than with click times.
func CompletionsByDay(topics []models.Topic, windowStart, windowEnd time.Time) []DayCount {
	loc := windowStart.Location()
	start := dateOf(windowStart, loc)
	end := dateOf(windowEnd, loc)

	byDate := make(map[time.Time]int)
	for _, t := range topics {
		for _, cp := range t.Revisions {
			if !cp.Completed {
				continue
			}
			byDate[dateOf(cp.DueDate, loc)]++
		}
	}

	var out []DayCount
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, DayCount{Date: d, Count: byDate[d]})
	}
	return out
}

// Summarize computes the headline numbers for a snapshot at now.
func Summarize(topics []models.Topic, now time.Time) Summary {
	s := Summary{Topics: len(topics)}
	for _, t := range topics {
		s.TotalCheckpoints += len(t.Revisions)
		for _, cp := range t.Revisions {
			if cp.Completed {
				s.CompletedCheckpoints++
			}
		}
		if schedule.IsMastered(t.Revisions) {
			s.Mastered++
			continue
		}
		if next, ok := schedule.NextCheckpoint(t.Revisions); ok && schedule.IsDue(next, now) {
			s.Due++
		}
	}
	return s
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
