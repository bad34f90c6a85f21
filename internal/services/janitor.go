package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper releases sessions idle for longer than the given duration and
// returns their ids. *recorder.RecorderManager satisfies it.
type Sweeper interface {
	Sweep(idle time.Duration) []string
}

// Janitor periodically reaps abandoned capture sessions so their browsers
// and writers do not outlive the operator.
type Janitor struct {
	cron    *cron.Cron
	sweeper Sweeper
	idle    time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	reaped  int
}

// NewJanitor schedules sweeps on a cron expression with an optional seconds field,
// e.g. "0 */5 * * * *" or "@every 1m".
func NewJanitor(sweeper Sweeper, schedule string, idle time.Duration, logger *zap.Logger) (*Janitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Janitor{
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		sweeper: sweeper,
		idle:    idle,
		logger:  logger.Named("janitor"),
	}
	entryID, err := j.cron.AddFunc(schedule, j.Sweep)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	j.logger.Info("Session sweep scheduled",
		zap.String("schedule", schedule), zap.Duration("idle_timeout", idle), zap.Int("entry", int(entryID)))
	return j, nil
}

// Start begins the schedule.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.running = true
	j.cron.Start()
	j.logger.Info("Janitor started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	j.mu.Unlock()

	<-j.cron.Stop().Done()
	j.logger.Info("Janitor stopped")
}

// Sweep runs one pass immediately.
func (j *Janitor) Sweep() {
	ids := j.sweeper.Sweep(j.idle)
	if len(ids) == 0 {
		return
	}
	j.mu.Lock()
	j.reaped += len(ids)
	j.mu.Unlock()
	j.logger.Info("Released idle sessions", zap.Strings("sessions", ids))
}

// Reaped returns how many sessions the janitor has released so far.
func (j *Janitor) Reaped() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.reaped
}
