package workers

import (
	"context"
	"log"
	"time"

	"nexus-progression-engine/models"
	"nexus-progression-engine/services"

	"gorm.io/gorm"
)

// EventWorker drains the activity event outbox. Producers that cannot
// afford the inline fan-out enqueue events; this worker picks up whatever
// has no processed_at yet, oldest first.
type EventWorker struct {
	db        *gorm.DB
	engine    *services.Engine
	interval  time.Duration
	batchSize int
}

func NewEventWorker(db *gorm.DB, engine *services.Engine) *EventWorker {
	return &EventWorker{
		db:        db,
		engine:    engine,
		interval:  5 * time.Second,
		batchSize: 100,
	}
}

func (w *EventWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Activity Event Worker (outbox → progression fan-out)…")
	go w.run(ctx)
}

func (w *EventWorker) run(ctx context.Context) {
	// Drain whatever accumulated while we were down before settling into
	// the ticker cadence.
	w.drain(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.drain(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Activity Event Worker stopped")
			return
		}
	}
}

func (w *EventWorker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var events []models.ActivityEvent
		err := w.db.Where("processed_at IS NULL").
			Order("occurred_at ASC").
			Limit(w.batchSize).
			Find(&events).Error
		if err != nil {
			log.Printf("❌ Event outbox read failed: %v", err)
			return
		}
		if len(events) == 0 {
			return
		}

		var failed int
		for _, event := range events {
			if err := w.engine.ProcessStoredEvent(event); err != nil {
				failed++
				log.Printf("⚠️ Event %s (%s/%s) failed: %v",
					event.ID, event.AccountID, event.Counter, err)
			}
		}
		log.Printf("📥 Processed %d queued event(s), %d failed", len(events), failed)

		// Failed events stay pending for the next tick; bail rather than
		// spin on a batch that is all failures.
		if failed == len(events) || len(events) < w.batchSize {
			return
		}
	}
}
