package utils

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

// Instrumentation times the phases of a run and tracks seed progress
type Instrumentation struct {
	logger  *slog.Logger
	verbose bool
}

// NewInstrumentation creates a new instrumentation instance
func NewInstrumentation(logger *slog.Logger, verbose bool) *Instrumentation {
	return &Instrumentation{
		logger:  logger,
		verbose: verbose,
	}
}

// TimedOperation runs operation and logs how long it took
func (i *Instrumentation) TimedOperation(name string, operation func() error) error {
	start := time.Now()
	i.logger.Debug("Starting operation", "operation", name)

	err := operation()
	duration := time.Since(start)

	if err != nil {
		i.logger.Error("Operation failed", "operation", name, "duration_seconds", duration.Seconds(), "error", err)
	} else {
		i.logger.Debug("Operation completed", "operation", name, "duration_seconds", duration.Seconds())
	}
	return err
}

// ProgressTracker counts finished items across goroutines
type ProgressTracker struct {
	name       string
	total      int
	processed  atomic.Int64
	lastUpdate atomic.Int64
	startTime  time.Time
	verbose    bool
	logger     *slog.Logger
}

// NewProgressTracker creates a new progress tracker
func (i *Instrumentation) NewProgressTracker(name string, total int) *ProgressTracker {
	pt := &ProgressTracker{
		name:      name,
		total:     total,
		startTime: time.Now(),
		verbose:   i.verbose,
		logger:    i.logger,
	}
	pt.lastUpdate.Store(pt.startTime.UnixNano())
	return pt
}

// Update adds increment finished items. In verbose mode progress is logged
// every 25 items or 2 seconds, by whichever goroutine wins the update.
func (pt *ProgressTracker) Update(increment int) {
	processed := pt.processed.Add(int64(increment))
	if !pt.verbose || pt.total == 0 {
		return
	}

	now := time.Now()
	last := pt.lastUpdate.Load()
	if processed%25 != 0 && now.Sub(time.Unix(0, last)) <= 2*time.Second {
		return
	}
	if !pt.lastUpdate.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	elapsed := now.Sub(pt.startTime)
	var eta time.Duration
	if processed > 0 {
		eta = elapsed / time.Duration(processed) * time.Duration(int64(pt.total)-processed)
	}

	pt.logger.Debug("Progress update",
		"operation", pt.name,
		"processed", processed,
		"total", pt.total,
		"percentage", float64(processed)/float64(pt.total)*100,
		"elapsed_seconds", elapsed.Seconds(),
		"eta_seconds", eta.Seconds())
}

// Complete marks the operation as finished
func (pt *ProgressTracker) Complete() {
	pt.logger.Debug("Progress tracking completed",
		"operation", pt.name,
		"processed", pt.processed.Load(),
		"total", pt.total,
		"duration_seconds", time.Since(pt.startTime).Seconds())
}

// GetMemoryUsage returns current memory usage in a human-readable format
func GetMemoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("%.1fMB allocated, %.1fMB system", float64(m.Alloc)/1024/1024, float64(m.Sys)/1024/1024)
}

// PhaseTracker logs the duration of consecutive phases of one run
type PhaseTracker struct {
	name         string
	currentPhase string
	phaseStart   time.Time
	startTime    time.Time
	logger       *slog.Logger
}

// NewPhaseTracker creates a new phase tracker
func (i *Instrumentation) NewPhaseTracker(name string) *PhaseTracker {
	i.logger.Debug("Starting operation", "operation", name)
	return &PhaseTracker{
		name:      name,
		startTime: time.Now(),
		logger:    i.logger,
	}
}

// StartPhase ends the current phase, if any, and begins the next one
func (pt *PhaseTracker) StartPhase(phaseName string) {
	pt.EndPhase()
	pt.currentPhase = phaseName
	pt.phaseStart = time.Now()
	pt.logger.Debug("Starting phase", "phase", phaseName, "parent_operation", pt.name)
}

// EndPhase ends the current phase
func (pt *PhaseTracker) EndPhase() {
	if pt.currentPhase == "" {
		return
	}
	pt.logger.Debug("Phase completed",
		"phase", pt.currentPhase,
		"duration_seconds", time.Since(pt.phaseStart).Seconds(),
		"parent_operation", pt.name)
	pt.currentPhase = ""
}

// Complete finishes the entire operation
func (pt *PhaseTracker) Complete(totalItems int) {
	pt.EndPhase()
	pt.logger.Debug("Operation completed",
		"operation", pt.name,
		"items", totalItems,
		"duration_seconds", time.Since(pt.startTime).Seconds(),
		"memory_usage", GetMemoryUsage())
}
