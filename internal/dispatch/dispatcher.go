// Package dispatch resolves a name to a sensor and reads it through the
// first capability it has in priority order.
package dispatch

import (
	"context"
	"fmt"

	"github.com/KevinKickass/PowerInsight/internal/devices"
	"github.com/KevinKickass/PowerInsight/internal/types"
	"go.uber.org/zap"
)

// MaxPort is the highest port number accepted by the numbered lookups.
const MaxPort = 60

// Lookup resolves registered names.
type Lookup interface {
	Lookup(name string) (*devices.Sensor, error)
}

type Dispatcher struct {
	names     Lookup
	refresher *Refresher
	priority  []types.Kind
	logger    *zap.Logger
}

// NewDispatcher reads through names, refreshing with refresher first. An
// empty priority uses types.Kinds.
func NewDispatcher(names Lookup, refresher *Refresher, priority []types.Kind, logger *zap.Logger) *Dispatcher {
	if len(priority) == 0 {
		priority = types.Kinds
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		names:     names,
		refresher: refresher,
		priority:  priority,
		logger:    logger,
	}
}

// Read refreshes stale chips, resolves name and measures through its first
// capability, recorded in the result's Kind. On any failure every field of
// the result is NaN.
func (d *Dispatcher) Read(ctx context.Context, name string) (types.Result, error) {
	if d.refresher != nil {
		d.refresher.MaybeRefresh(ctx)
	}

	s, err := d.names.Lookup(name)
	if err != nil {
		return types.NaNResult(), err
	}

	for _, k := range d.priority {
		c, ok := s.Capability(k)
		if !ok {
			continue
		}

		res, err := c.Measure(ctx, s)
		if err != nil {
			d.logger.Debug("Read failed",
				zap.String("name", name),
				zap.Stringer("capability", k),
				zap.Error(err))
			return types.NaNResult(), err
		}
		res.Kind = k
		return res, nil
	}

	return types.NaNResult(), fmt.Errorf("%w: %s has no capability", types.ErrNotFound, name)
}

// ReadPort reads the connector prefix+n, n in [1,MaxPort].
func (d *Dispatcher) ReadPort(ctx context.Context, prefix string, n int) (types.Result, error) {
	if n < 1 || n > MaxPort {
		return types.NaNResult(), fmt.Errorf("%w: port %d not in [1,%d]", types.ErrNotFound, n, MaxPort)
	}
	return d.Read(ctx, fmt.Sprintf("%s%d", prefix, n))
}
