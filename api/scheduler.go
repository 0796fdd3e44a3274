/*
scheduler.go - Periodic aging alert check

PURPOSE:
  Periodically evaluates inventory aging alerts and logs every batch that
  newly crossed the threshold, so spoilage risk shows up in the server log
  without anyone opening the dashboard.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reads alerts from the engine; nothing is written
  - Remembers which batches were already reported so each one is logged
    once per crossing. A batch that drops below the threshold (e.g. the
    threshold was raised) or is depleted is forgotten and may be
    reported again later.

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAgingAlertScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - farm/inventory.go: ListInventoryAlerts
*/
package api

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/orchardops/farm-engine/farm"
)

// AgingAlertScheduler reports aging batches on a timer.
type AgingAlertScheduler struct {
	Engine        *farm.Engine
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker   *time.Ticker
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	reported map[farm.BatchID]bool
	lastRun  time.Time
}

// NewAgingAlertScheduler creates a new scheduler.
func NewAgingAlertScheduler(engine *farm.Engine, logger *slog.Logger) *AgingAlertScheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AgingAlertScheduler{
		Engine:        engine,
		Logger:        logger.With("component", "scheduler"),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		reported:      make(map[farm.BatchID]bool),
	}
}

// Start begins the scheduler.
func (s *AgingAlertScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.Logger.Info("started", "interval", s.CheckInterval.String())
}

// Stop stops the scheduler and waits for a running check to finish.
func (s *AgingAlertScheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.stop = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.Logger.Info("stopped")
}

func (s *AgingAlertScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow()

	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one check and returns the alerts logged for the first time.
func (s *AgingAlertScheduler) RunNow() []farm.InventoryAlert {
	alerts := s.Engine.ListInventoryAlerts()

	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[farm.BatchID]bool, len(alerts))
	var fresh []farm.InventoryAlert
	for _, a := range alerts {
		current[a.BatchID] = true
		if s.reported[a.BatchID] {
			continue
		}
		fresh = append(fresh, a)
		s.Logger.Warn("inventory aging alert",
			"batch_id", a.BatchID,
			"batch_no", a.BatchNo,
			"grade", a.GradeName,
			"days_in_stock", a.DaysInStock,
		)
	}
	s.reported = current
	s.lastRun = time.Now()

	s.Logger.Info("aging check completed", "alerts", len(alerts), "new", len(fresh))
	return fresh
}

// LastRun is when the last check finished. Zero before the first run.
func (s *AgingAlertScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
