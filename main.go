package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/revtrack/internal/bot"
	"github.com/example/revtrack/internal/scheduler"
	"github.com/example/revtrack/internal/storage"
	"github.com/example/revtrack/internal/topics"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(storage.Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DataDir:     os.Getenv("REVTRACK_DATA_DIR"),
	})
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	seed := topics.DemoSeed
	if os.Getenv("DISABLE_SEED") == "true" {
		seed = topics.EmptySeed
	}
	repo := topics.New(store, topics.WithSeed(seed))

	loadCtx, loadCancel := context.WithTimeout(ctx, 10*time.Second)
	err = repo.Load(loadCtx)
	loadCancel()
	if err != nil {
		var corrupt *topics.CorruptDataError
		if errors.As(err, &corrupt) {
			// Start empty rather than refuse to start; the next write
			// replaces the bad payload.
			log.Printf("warning: %v", corrupt)
		} else {
			log.Fatalf("Failed to load topics: %v", err)
		}
	}

	b, err := bot.New(repo)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	var sched *scheduler.Scheduler
	if os.Getenv("ENABLE_SCHEDULER") != "false" {
		sched = scheduler.New(repo, b)
		sched.Start()
		defer sched.Stop()
	}

	done := make(chan struct{})
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		cancel()
		close(done)
	}()

	log.Println("Revision tracker started. Press Ctrl+C to stop.")
	go func() {
		if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Bot error: %v", err)
		}
	}()

	<-done
	log.Println("Revision tracker stopped")
}
