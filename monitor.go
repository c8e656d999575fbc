package newsmon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/pevans/newsmon/config"
)

// slowCycle is the duration above which a cycle is logged as a warning.
const slowCycle = 30 * time.Second

// ErrMonitorRunning is returned by Run when the monitor is already running.
var ErrMonitorRunning = errors.New("monitor already running")

// MonitorStatus describes the most recent refresh cycles.
type MonitorStatus struct {
	Source        string     `json:"source"`
	Interval      string     `json:"interval"`
	Enrich        bool       `json:"enrich"`
	Running       bool       `json:"running"`
	Records       int        `json:"records"`
	Cycles        int        `json:"cycles"`
	Failures      int        `json:"failures"`
	LastCycleID   string     `json:"last_cycle_id,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
	LastFetched   int        `json:"last_fetched"`
	LastAccepted  int        `json:"last_accepted"`
	LastSkipped   int        `json:"last_skipped"`
	LastInserted  int        `json:"last_inserted"`
	LastEnriched  int        `json:"last_enriched"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
}

// Monitor refreshes the history from a source on a fixed interval.
type Monitor struct {
	source     Source
	aggregator *Aggregator
	cron       *cron.Cron

	// runMu serializes refresh cycles.
	runMu sync.Mutex

	mu       sync.Mutex
	interval time.Duration
	entryID  cron.EntryID
	runCtx   context.Context
	stopChan chan struct{}
	status   MonitorStatus
}

// NewMonitor creates a monitor. The interval is clamped to the allowed
// refresh range.
func NewMonitor(source Source, aggregator *Aggregator, interval time.Duration) *Monitor {
	return &Monitor{
		source:     source,
		aggregator: aggregator,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		interval:   config.ClampRefreshInterval(interval),
	}
}

// Run refreshes once immediately, then on every interval until Stop is called
// or the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.runCtx != nil {
		m.mu.Unlock()
		return ErrMonitorRunning
	}
	m.runCtx = ctx
	m.stopChan = make(chan struct{})
	stopChan := m.stopChan
	m.status.Running = true
	m.mu.Unlock()

	log.Printf("Monitor starting: %s every %v", m.source.Name(), m.Interval())

	if _, err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.Printf("ERROR: Initial refresh failed: %v", err)
	}

	m.mu.Lock()
	err := m.scheduleLocked()
	m.mu.Unlock()
	if err != nil {
		m.finishRun()
		return err
	}
	m.cron.Start()

	var runErr error
	select {
	case <-ctx.Done():
		log.Println("Monitor stopping (context cancelled)")
		runErr = ctx.Err()
	case <-stopChan:
		log.Println("Monitor stopping")
	}

	// Wait for a scheduled cycle in progress to complete
	<-m.cron.Stop().Done()
	m.finishRun()
	return runErr
}

func (m *Monitor) finishRun() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entryID != 0 {
		m.cron.Remove(m.entryID)
		m.entryID = 0
	}
	m.runCtx = nil
	m.status.Running = false
	m.status.NextRunAt = nil
}

// Stop signals a running monitor to stop gracefully.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
}

// scheduleLocked replaces the cron entry with one for the current interval.
// Caller holds m.mu.
func (m *Monitor) scheduleLocked() error {
	if m.runCtx == nil {
		return nil
	}
	if m.entryID != 0 {
		m.cron.Remove(m.entryID)
		m.entryID = 0
	}

	ctx := m.runCtx
	id, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.interval), func() {
		if _, err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
			log.Printf("ERROR: Scheduled refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	m.entryID = id
	return nil
}

// SetInterval changes the refresh interval, rescheduling a running monitor.
// It returns the interval actually applied after clamping.
func (m *Monitor) SetInterval(interval time.Duration) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	interval = config.ClampRefreshInterval(interval)
	if interval == m.interval {
		return interval, nil
	}

	previous := m.interval
	m.interval = interval
	if err := m.scheduleLocked(); err != nil {
		m.interval = previous
		return previous, err
	}

	log.Printf("INFO: Refresh interval changed from %v to %v", previous, interval)
	return interval, nil
}

// Interval returns the current refresh interval.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// ApplySettings applies runtime settings to the monitor and its aggregator.
func (m *Monitor) ApplySettings(settings config.Settings) {
	if _, err := m.SetInterval(settings.Interval()); err != nil {
		log.Printf("ERROR: Failed to apply refresh interval: %v", err)
	}
	m.aggregator.SetEnrich(settings.Enrich)
}

// Status returns a copy of the monitor status.
func (m *Monitor) Status() MonitorStatus {
	m.mu.Lock()
	status := m.status
	status.Interval = m.interval.String()
	if m.entryID != 0 {
		if next := m.cron.Entry(m.entryID).Next; !next.IsZero() {
			status.NextRunAt = &next
		}
	}
	m.mu.Unlock()

	status.Source = m.source.Name()
	status.Enrich = m.aggregator.Enrich()
	status.Records = m.aggregator.Store().Len()
	return status
}

// Refresh runs one cycle: fetch from the source and ingest the entries. A
// failed fetch leaves the history untouched. Concurrent calls run one after
// the other.
func (m *Monitor) Refresh(ctx context.Context) (*IngestResult, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	cycleID := uuid.New().String()
	startTime := time.Now()

	result, fetched, err := m.runCycle(ctx)
	duration := time.Since(startTime)
	m.recordCycle(cycleID, startTime, fetched, result, err)

	if err != nil {
		log.Printf("ERROR: Cycle %s for %s failed after %v: %v", cycleID, m.source.Name(), duration, err)
		return nil, err
	}

	for _, entryErr := range result.Errors {
		log.Printf("WARN: Cycle %s skipped %v", cycleID, &entryErr)
	}

	if duration > slowCycle {
		log.Printf("WARN: Slow cycle %s for %s: %d fetched, %d new, %d unresolved in %v",
			cycleID, m.source.Name(), fetched, result.Inserted, result.Unresolved, duration)
	} else {
		log.Printf("INFO: Cycle %s for %s: %d fetched, %d new, %d unresolved in %v",
			cycleID, m.source.Name(), fetched, result.Inserted, result.Unresolved, duration)
	}

	return result, nil
}

func (m *Monitor) runCycle(ctx context.Context) (*IngestResult, int, error) {
	entries, err := m.source.Fetch(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch from %s: %w", m.source.Name(), err)
	}

	result, err := m.aggregator.Ingest(ctx, entries)
	if err != nil {
		return nil, len(entries), err
	}
	return result, len(entries), nil
}

func (m *Monitor) recordCycle(cycleID string, at time.Time, fetched int, result *IngestResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.Cycles++
	m.status.LastCycleID = cycleID
	m.status.LastRunAt = &at
	m.status.LastFetched = fetched

	if err != nil {
		msg := err.Error()
		m.status.Failures++
		m.status.LastError = &msg
		return
	}

	m.status.LastSuccessAt = &at
	m.status.LastError = nil
	m.status.LastAccepted = result.Accepted
	m.status.LastSkipped = result.Skipped
	m.status.LastInserted = result.Inserted
	m.status.LastEnriched = result.Enriched
}
