package adc

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SamplerConfig tunes how a chip's readings are cached.
type SamplerConfig struct {
	// MaxAge is how long a cached reading satisfies Raw. Zero converts live
	// on every call.
	MaxAge time.Duration
	// Filter is the low-pass factor applied on Update, in [0,1].
	Filter float64
	Banks  BankSelector
	Clock  clock.Clock
}

// Sampler turns a Converter into a Chip: it routes banks, caches readings and
// refreshes every tracked channel on Update.
type Sampler struct {
	ID     uuid.UUID
	name   string
	conv   Converter
	banks  BankSelector
	cache  *Cache
	maxAge time.Duration
	filter float64
	logger *zap.Logger
}

func NewSampler(name string, conv Converter, cfg SamplerConfig, logger *zap.Logger) (*Sampler, error) {
	if conv == nil {
		return nil, fmt.Errorf("sampler %s: no converter", name)
	}
	if cfg.Filter < 0 || cfg.Filter > 1 {
		return nil, fmt.Errorf("sampler %s: filter factor %.3f not in [0,1]", name, cfg.Filter)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sampler{
		ID:     uuid.New(),
		name:   name,
		conv:   conv,
		banks:  cfg.Banks,
		cache:  NewCache(cfg.Clock),
		maxAge: cfg.MaxAge,
		filter: cfg.Filter,
		logger: logger,
	}, nil
}

func (s *Sampler) Name() string {
	return s.name
}

// Track adds ch to the channels refreshed by Update.
func (s *Sampler) Track(ch Channel) {
	s.cache.Track(ch)
}

// Channels returns the tracked channels.
func (s *Sampler) Channels() []Channel {
	return s.cache.Channels()
}

// Raw returns a cached reading younger than MaxAge, or converts live.
func (s *Sampler) Raw(ctx context.Context, ch Channel) (float64, error) {
	if v, ok := s.cache.Get(ch, s.maxAge); ok {
		return v, nil
	}

	v, err := s.convert(ctx, ch)
	if err != nil {
		return v, err
	}
	return s.cache.Put(ch, v, 0)
}

// Update recalibrates the chip when it supports it, then converts every
// tracked channel. Channel failures are collected; the rest still refresh.
func (s *Sampler) Update(ctx context.Context) error {
	if cal, ok := s.conv.(Calibrator); ok {
		if err := cal.Calibrate(ctx); err != nil {
			s.cache.Invalidate()
			return fmt.Errorf("calibrate %s: %w", s.name, err)
		}
	}

	var errs error
	for _, ch := range s.cache.Channels() {
		v, err := s.convert(ctx, ch)
		if err == nil {
			_, err = s.cache.Put(ch, v, s.filter)
		}
		if err != nil {
			s.logger.Warn("Channel refresh failed",
				zap.String("chip", s.name),
				zap.Stringer("channel", ch),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", s.name, ch, err))
		}
	}

	return errs
}

func (s *Sampler) convert(ctx context.Context, ch Channel) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if ch.Bank >= 0 && s.banks != nil {
		if err := s.banks.Select(ch.Bank); err != nil {
			return 0, fmt.Errorf("select bank %d: %w", ch.Bank, err)
		}
	}

	v, err := s.conv.Convert(ctx, ch)
	if err != nil {
		return 0, fmt.Errorf("convert %s: %w", ch, err)
	}
	return v, nil
}
