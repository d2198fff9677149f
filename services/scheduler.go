// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartScheduler runs the periodic maintenance jobs: hourly recurring
// campaign ticks, and a daily sweep that expires ended challenges, closes
// ended seasons and snapshots the active leaderboard.
func (e *Engine) StartScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every hour: recurring campaigns. The tick id is the hour bucket, so
	// overlapping or restarted sweeps within the same hour dedup on the
	// CampaignRun rows.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			tick := e.Clock.Now().Format("2006-01-02T15")
			e.Campaigns.RunDue(tick)
		}),
	)

	// Every 15 minutes: housekeeping on challenges and seasons.
	_, _ = sched.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(func() {
			now := e.Clock.Now()
			if n, err := e.Challenges.ExpireEnded(now); err != nil {
				log.Printf("[Scheduler] Challenge expiry failed: %v", err)
			} else if n > 0 {
				log.Printf("✅ Expired %d ended challenges", n)
			}
			if err := e.Seasons.CloseEnded(now); err != nil {
				log.Printf("[Scheduler] Season close sweep failed: %v", err)
			}
		}),
	)

	// Once a day: leaderboard rank snapshot for the active season.
	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			season, err := e.Seasons.Current(e.Clock.Now())
			if err != nil {
				log.Printf("[Scheduler] Season lookup failed: %v", err)
				return
			}
			if season == nil {
				return
			}
			if err := e.Seasons.Snapshot(season.ID, e.Clock.Today(), 100); err != nil {
				log.Printf("[Scheduler] Rank snapshot failed: %v", err)
			} else {
				log.Printf("✅ Rank snapshot taken for season %s", season.Name)
			}
		}),
	)
}
