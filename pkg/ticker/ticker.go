// Package ticker runs named repeating jobs that are cancelled together.
package ticker

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/feelback/pkg/log"
	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Repeater owns a set of fixed-interval jobs. Jobs never overlap with
// themselves and a panicking job is logged rather than crashing the host.
type Repeater struct {
	logger zerolog.Logger

	mu      sync.Mutex
	cron    *rcron.Cron
	entries map[string]rcron.EntryID
	started bool
	stopped bool
}

// New creates an idle repeater
func New() *Repeater {
	logger := log.WithComponent("ticker")
	cronLogger := cronLog{logger: logger}
	return &Repeater{
		logger: logger,
		cron: rcron.New(rcron.WithChain(
			rcron.Recover(cronLogger),
			rcron.SkipIfStillRunning(cronLogger),
		)),
		entries: make(map[string]rcron.EntryID),
	}
}

// Every registers fn to run every d. Intervals are rounded up to whole
// seconds with a one second minimum. Names must be unique.
func (r *Repeater) Every(name string, d time.Duration, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return fmt.Errorf("repeater stopped, cannot add %q", name)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	interval := roundInterval(d)
	r.entries[name] = r.cron.Schedule(rcron.Every(interval), rcron.FuncJob(fn))
	r.logger.Debug().Str("job", name).Dur("interval", interval).Msg("Registered repeating job")
	return nil
}

// roundInterval rounds d up to whole seconds, the resolution of cron
// schedules, with a one second minimum
func roundInterval(d time.Duration) time.Duration {
	if d <= time.Second {
		return time.Second
	}
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}

// Start begins running registered jobs. Calling it again is a no-op.
func (r *Repeater) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.stopped {
		return
	}
	r.started = true
	r.cron.Start()
}

// Stop cancels every job. It does not wait for a running job to return
// and is safe to call more than once.
func (r *Repeater) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	for name, id := range r.entries {
		r.cron.Remove(id)
		delete(r.entries, name)
	}
	if r.started {
		r.cron.Stop()
	}
}

// Jobs returns the names of registered jobs
func (r *Repeater) Jobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// cronLog adapts zerolog to the cron.Logger interface
type cronLog struct {
	logger zerolog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
