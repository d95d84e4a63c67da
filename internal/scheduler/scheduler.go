// Package scheduler runs the periodic due-topic check and forwards reminders
// to a Notifier. Reminders are best effort: a failed or absent notifier never
// touches repository state.
package scheduler

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Default notification window. Reminders outside these hours are skipped.
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// Notifier delivers a due-topic reminder to the user.
type Notifier interface {
	SendDueReminder(count int) error
}

// DueCounter reports how many topics are due at a given instant. The topic
// repository satisfies this.
type DueCounter interface {
	DueCount(now time.Time) int
}

// Scheduler manages the hourly reminder job.
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	due       DueCounter
	clock     func() time.Time

	mu            sync.Mutex
	lastNotified  int
	lastNotifyDay time.Time
}

// New creates a scheduler over the given due counter and notifier.
func New(due DueCounter, notifier Notifier) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		due:       due,
		clock:     time.Now,
	}
}

// Start begins the hourly reminder check without blocking.
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Hour().Do(s.checkAndNotify)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunManualCheck forces an immediate reminder check, ignoring the
// notification window. Used by the bot's /remind command.
func (s *Scheduler) RunManualCheck() error {
	count := s.due.DueCount(s.clock())
	if count == 0 {
		return nil
	}
	return s.notifier.SendDueReminder(count)
}

// checkAndNotify sends a reminder when topics are due, at most once per
// became-due edge: within one day a reminder repeats only if the due count
// grew since the last one.
func (s *Scheduler) checkAndNotify() {
	now := s.clock()
	currentHour := now.Hour()

	startHour := hourFromEnv("NOTIFICATION_START_HOUR", DefaultNotificationStartHour)
	endHour := hourFromEnv("NOTIFICATION_END_HOUR", DefaultNotificationEndHour)

	if currentHour < startHour || currentHour > endHour {
		log.Printf("current hour %d is outside notification hours (%d-%d), skipping reminders",
			currentHour, startHour, endHour)
		return
	}

	count := s.due.DueCount(now)
	if count == 0 {
		s.mu.Lock()
		s.lastNotified = 0
		s.mu.Unlock()
		return
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	s.mu.Lock()
	alreadySent := s.lastNotifyDay.Equal(today) && count <= s.lastNotified
	if !alreadySent {
		s.lastNotified = count
		s.lastNotifyDay = today
	}
	s.mu.Unlock()
	if alreadySent {
		return
	}

	if err := s.notifier.SendDueReminder(count); err != nil {
		log.Printf("error sending due reminder: %v", err)
	}
}

func hourFromEnv(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			return h
		}
	}
	return fallback
}
