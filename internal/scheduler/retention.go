// ==============================================================================
// SETTLEMENT RETENTION SWEEPER - internal/scheduler/retention.go
// ==============================================================================
package scheduler

import (
	"context"
	"sync"
	"time"

	"settleup/pkg/logger"
)

// Purger deletes settlement runs created before a cutoff.
type Purger interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically purges settlement runs older than the retention
// window.
type Sweeper struct {
	purger    Purger
	retention time.Duration
	interval  time.Duration
	logger    logger.Logger
	now       func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewSweeper(p Purger, retention, interval time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		purger:    p,
		retention: retention,
		interval:  interval,
		logger:    log,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval until Stop.
func (s *Sweeper) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()

		s.Sweep(context.Background())
		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stop:
				return
			}
		}
	}()
	s.logger.Info("Settlement retention sweeper started", map[string]interface{}{
		"retention": s.retention.String(),
		"interval":  s.interval.String(),
	})
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Sweep deletes the runs that fell out of the retention window.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)

	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	n, err := s.purger.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to purge settlement runs", map[string]interface{}{
			"cutoff": cutoff.Format(time.RFC3339),
			"error":  err.Error(),
		})
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Purged settlement runs", map[string]interface{}{
			"cutoff":  cutoff.Format(time.RFC3339),
			"deleted": n,
		})
	}
	return n, nil
}
