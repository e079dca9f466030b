package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// autoSaveTimeout bounds a single background save so a hung store cannot
// stall the loop forever.
const autoSaveTimeout = 5 * time.Minute

// StartAutoSave begins periodic snapshots at a fixed interval. Only one
// loop may run per manager; ticks never overlap because each save
// completes before the next wait begins.
func (m *Manager) StartAutoSave(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("start auto-save: interval must be positive")
	}
	return m.start(func(now time.Time) time.Time { return now.Add(interval) })
}

// StartAutoSaveSchedule begins periodic snapshots on a standard five-field
// cron expression.
func (m *Manager) StartAutoSaveSchedule(expr string) error {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("start auto-save: parse schedule %q: %w", expr, err)
	}
	return m.start(sched.Next)
}

func (m *Manager) start(next func(time.Time) time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("start auto-save: already running")
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true
	go m.loop(next, m.stop, m.done)
	m.logger.Info("auto-save started")
	return nil
}

func (m *Manager) loop(next func(time.Time) time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		wait := time.Until(next(m.nowFn()))
		if wait < 0 {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		m.autoSave()
	}
}

// autoSave is best-effort housekeeping: failures are logged and counted,
// never propagated.
func (m *Manager) autoSave() {
	ctx, cancel := context.WithTimeout(context.Background(), autoSaveTimeout)
	defer cancel()

	path, err := m.CreateSnapshot(ctx)
	if err != nil {
		m.logger.Warn("auto-save failed", "error", err)
		if m.metrics != nil {
			m.metrics.AutoSaveFailures.Add(ctx, 1)
		}
		return
	}
	m.logger.Debug("auto-save completed", "path", path)
}

// StopAutoSave halts the loop and waits for any in-flight save to finish.
// Safe to call when auto-save never started.
func (m *Manager) StopAutoSave() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stop)
	m.running = false
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Info("auto-save stopped")
}
