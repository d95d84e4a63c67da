package topics

import (
	"strings"
	"time"

	"github.com/example/revtrack/internal/schedule"
	"github.com/example/revtrack/pkg/models"
)

// DemoSeed fills a fresh installation with three example topics in various
// stages of progress, so the list, due view and stats all have something to
// show before the user adds their own.
func DemoSeed(now time.Time) []models.Topic {
	return []models.Topic{
		demoTopic("Binary Search", models.CategoryDSA, now, func(day int) bool { return day < 12 }),
		demoTopic("Singleton Pattern", models.CategoryOOP, now.AddDate(0, 0, -10), func(int) bool { return false }),
		demoTopic("Load Balancers", models.CategorySystemDesign, now.AddDate(0, 0, -30), func(int) bool { return true }),
	}
}

func demoTopic(name string, category models.Category, createdAt time.Time, completed func(day int) bool) models.Topic {
	revisions := schedule.BuildCheckpoints(createdAt, models.RevisionOffsets)
	for i := range revisions {
		if completed(revisions[i].Day) {
			at := revisions[i].DueDate
			revisions[i].Completed = true
			revisions[i].CompletedAt = &at
		}
	}
	return models.Topic{
		ID:        demoID(name),
		Name:      name,
		Category:  category,
		CreatedAt: createdAt,
		Revisions: revisions,
	}
}

// demoID keeps seeded ids stable across runs so repeated seeding in tests is
// deterministic.
func demoID(name string) string {
	return "demo-" + strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}
