package dispatch

import (
	"context"
	"time"

	"github.com/KevinKickass/PowerInsight/internal/adc"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultRefreshInterval bounds the age of cached chip readings.
const DefaultRefreshInterval = 60 * time.Second

// Refresher runs the Update List inline once the last pass is older than the
// refresh interval. There is no background goroutine: the caller that
// notices staleness pays for the pass.
type Refresher struct {
	list     []adc.Updater
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger

	last   time.Time
	passes int
}

func NewRefresher(list []adc.Updater, interval time.Duration, clk clock.Clock, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		list:     list,
		interval: interval,
		clock:    clk,
		logger:   logger,
	}
}

// Stale reports whether the next read triggers a pass.
func (r *Refresher) Stale() bool {
	return r.passes == 0 || r.clock.Since(r.last) >= r.interval
}

// MaybeRefresh runs a pass when the readings are stale and reports whether
// it did.
func (r *Refresher) MaybeRefresh(ctx context.Context) bool {
	if !r.Stale() {
		return false
	}
	r.Refresh(ctx)
	return true
}

// Refresh invokes every Update List entry in order. Failures are logged and
// returned together; the remaining entries still run and the staleness clock
// is reset regardless.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := r.clock.Now()

	var errs error
	for _, u := range r.list {
		if err := u.Update(ctx); err != nil {
			r.logger.Warn("Update failed",
				zap.String("chip", u.Name()),
				zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	r.last = r.clock.Now()
	r.passes++

	r.logger.Debug("Update list refreshed",
		zap.Int("entries", len(r.list)),
		zap.Int("failures", len(multierr.Errors(errs))),
		zap.Duration("took", r.last.Sub(start)))

	return errs
}

// Passes returns how many refresh passes have run.
func (r *Refresher) Passes() int {
	return r.passes
}
