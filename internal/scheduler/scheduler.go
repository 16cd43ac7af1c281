package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vmquan2200/edufinai/internal/entity"
)

// Scheduler fires the periodic challenge resets: daily at midnight, weekly
// at week start, monthly at month start, all in the reference time zone.
type Scheduler struct {
	cron  *cron.Cron
	reset ResetService
}

func NewScheduler(reset ResetService, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(loc)),
		reset: reset,
	}
}

func (s *Scheduler) register(spec string, scope entity.ChallengeScope) {
	_, err := s.cron.AddFunc(spec, func() {
		log.Printf("📅 [reset:%s] Starting scheduled reset...", scope)
		if _, err := s.reset.ResetScope(context.Background(), scope); err != nil {
			log.Printf("❌ [reset:%s] Reset failed: %v", scope, err)
		} else {
			log.Printf("✅ [reset:%s] Reset completed", scope)
		}
	})
	if err != nil {
		log.Printf("⚠️ Failed to schedule %s reset: %v", scope, err)
	}
}

// Start schedules the three reset triggers and runs the cron loop.
func (s *Scheduler) Start() {
	s.register("0 0 * * *", entity.ScopeDaily)
	s.register("0 0 * * 1", entity.ScopeWeekly)
	s.register("0 0 1 * *", entity.ScopeMonthly)

	s.cron.Start()
	log.Println("🚀 Challenge reset scheduler started")
}

// Stop halts the cron loop; a run already in flight finishes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("🛑 Challenge reset scheduler stopped")
}
