// Package scheduler runs the two recurring jobs of the pipeline: the
// high-frequency bar collection cycle and the lower-frequency analysis
// cycle. Both run in singleton mode, so a cycle still in flight is never
// overlapped by its next trigger.
package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"go_stock_collector/services/analysis"
	"go_stock_collector/services/collector"
)

// Scheduler manages the recurring collection and analysis jobs
type Scheduler struct {
	cron      *gocron.Scheduler
	collector *collector.Collector
	analyzer  *analysis.Analyzer

	syncInterval     int
	analysisInterval int
	analysisEnabled  bool
}

// NewScheduler creates a scheduler around the collection and analysis jobs.
// With analysisEnabled false only the collection job is registered.
func NewScheduler(c *collector.Collector, a *analysis.Analyzer, syncIntervalMin, analysisIntervalMin int, analysisEnabled bool) *Scheduler {
	return &Scheduler{
		cron:             gocron.NewScheduler(time.UTC),
		collector:        c,
		analyzer:         a,
		syncInterval:     syncIntervalMin,
		analysisInterval: analysisIntervalMin,
		analysisEnabled:  analysisEnabled,
	}
}

// Start registers and starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Collect bar data, first run immediately so a fresh deployment
	// backfills without waiting a full interval
	_, err := s.cron.Every(s.syncInterval).Minutes().
		SingletonMode().
		StartImmediately().
		Do(s.collector.SyncAll)
	if err != nil {
		log.Printf("Error scheduling collection job: %v", err)
	}

	if s.analysisEnabled {
		_, err = s.cron.Every(s.analysisInterval).Minutes().
			SingletonMode().
			Do(s.analyzer.Run)
		if err != nil {
			log.Printf("Error scheduling analysis job: %v", err)
		}
	}

	s.cron.StartAsync()
	log.Printf("Scheduler started (collect every %dm, analysis every %dm, analysis enabled=%v)",
		s.syncInterval, s.analysisInterval, s.analysisEnabled)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}
