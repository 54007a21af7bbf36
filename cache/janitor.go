package cache

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// JANITOR - Periodic purge of expired entries
// =============================================================================

// Janitor purges a cache on a fixed interval.
//
// USAGE:
//
//	j := NewJanitor(memoryCache, logger)
//	j.Start()
//	// ... later
//	j.Stop()
type Janitor struct {
	Target   Purger
	Interval time.Duration
	Enabled  bool

	logger *logrus.Entry
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewJanitor(target Purger, logger *logrus.Logger) *Janitor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Janitor{
		Target:   target,
		Interval: time.Minute,
		Enabled:  true,
		logger:   logger.WithField("component", "cache.janitor"),
	}
}

// Start begins purging in the background. Calling Start twice is a no-op.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.Enabled || j.Target == nil {
		j.logger.Info("disabled, not starting")
		return
	}
	if j.ticker != nil {
		return
	}

	j.ticker = time.NewTicker(j.Interval)
	j.stop = make(chan struct{})
	j.wg.Add(1)
	go j.run(j.ticker, j.stop)

	j.logger.WithField("interval", j.Interval.String()).Info("started")
}

// Stop halts the janitor and waits for an in-flight purge.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker == nil {
		return
	}
	j.ticker.Stop()
	close(j.stop)
	j.wg.Wait()
	j.ticker = nil
	j.logger.Info("stopped")
}

// RunNow purges immediately.
func (j *Janitor) RunNow() int {
	n := j.Target.Purge()
	if n > 0 {
		j.logger.WithField("purged", n).Debug("purged expired entries")
	}
	return n
}

func (j *Janitor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer j.wg.Done()
	for {
		select {
		case <-ticker.C:
			j.RunNow()
		case <-stop:
			return
		}
	}
}
