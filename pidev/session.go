// Package pidev is the Power Insight reading library: set a session up, open
// it once, then read sensors by name or port number.
package pidev

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/KevinKickass/PowerInsight/internal/config"
	"github.com/KevinKickass/PowerInsight/internal/devices"
	"github.com/KevinKickass/PowerInsight/internal/dispatch"
	"github.com/KevinKickass/PowerInsight/internal/system"
	"github.com/KevinKickass/PowerInsight/internal/types"
	"github.com/benbjohnson/clock"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Status is the result code of the reading calls.
type Status = types.Status

const (
	Success  = types.StatusSuccess
	NoSample = types.StatusNoSample
	NotFound = types.StatusNotFound
	Error    = types.StatusError
)

// MaxPort is the highest port number Read and Temp accept.
const MaxPort = dispatch.MaxPort

// Sample receives one reading. Value holds the measurement of the capability
// that answered (watts, volts, amps, degrees or a generic reading); Volt and
// Amp are set when that capability produces them and NaN otherwise.
type Sample struct {
	Value float64
	Volt  float64
	Amp   float64
	// Kind is the capability that answered; only meaningful on Success.
	Kind types.Kind
}

// Options are the Setup arguments. Zero fields keep the value from the
// settings file, the PI_ environment or the built-in default.
type Options struct {
	AppName    string
	LibexecDir string
	ConfigFile string
	DebugFlags int
	Verbose    int
	// Settings is an optional YAML settings file.
	Settings string
}

// Session is one opened acquisition core. Calls are serialized.
type Session struct {
	mu     sync.Mutex
	cfg    *config.Config
	lm     *system.LifecycleManager
	logger *zap.Logger
}

// Setup resolves the configuration. It must be called before Open.
func Setup(opts Options, logger *zap.Logger) (*Session, error) {
	cfg, err := config.Load(viper.New(), opts.Settings)
	if err != nil {
		return nil, err
	}
	opts.apply(cfg)
	return newSession(cfg, nil, nil, logger), nil
}

// NewSession wraps an already loaded configuration.
func NewSession(cfg *config.Config, logger *zap.Logger) *Session {
	return newSession(cfg, nil, nil, logger)
}

func newSession(cfg *config.Config, hw devices.Hardware, clk clock.Clock, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cfg:    cfg,
		lm:     system.NewLifecycleManager(cfg, hw, clk, logger),
		logger: logger,
	}
}

func (o Options) apply(cfg *config.Config) {
	if o.AppName != "" {
		cfg.App.Name = o.AppName
	}
	if o.LibexecDir != "" {
		cfg.Paths.LibexecDir = o.LibexecDir
	}
	if o.ConfigFile != "" {
		cfg.Paths.ConfigFile = o.ConfigFile
	}
	cfg.Debug.Flags |= o.DebugFlags
	if o.Verbose != 0 {
		cfg.Debug.Verbose = o.Verbose
	}
}

// Open bootstraps the core. A failure is a *system.BootstrapError.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lm.Open(ctx)
}

// MustOpen opens the session or prints the categorized diagnostic and exits.
func (s *Session) MustOpen(ctx context.Context) {
	err := s.Open(ctx)
	if err == nil {
		return
	}

	var berr *system.BootstrapError
	if errors.As(err, &berr) {
		fmt.Fprintf(os.Stderr, "%s: %s during %s: %v\n", s.cfg.App.Name, berr.Category, berr.Stage, berr.Err)
	} else {
		fmt.Fprintf(os.Stderr, "%s: %v\n", s.cfg.App.Name, err)
	}
	_ = s.logger.Sync()
	os.Exit(1)
}

// Close releases the bus handles.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lm.Close()
}

// Names lists the registered connectors in registration order.
func (s *Session) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lm.Registry() == nil {
		return nil
	}
	return s.lm.Registry().Names()
}

// ReadByName reads the connector or sensor called name into out.
func (s *Session) ReadByName(ctx context.Context, name string, out *Sample) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if out == nil {
		return NoSample
	}
	d := s.lm.Dispatcher()
	if d == nil {
		out.fail()
		return Error
	}
	return s.read(ctx, name, out, d.Read)
}

// Read reads connector number n. The bare number is tried before "J"+n.
func (s *Session) Read(ctx context.Context, n int, out *Sample) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if out == nil {
		return NoSample
	}
	d := s.lm.Dispatcher()
	if d == nil {
		out.fail()
		return Error
	}
	if n < 1 || n > MaxPort {
		out.fail()
		return NotFound
	}

	if st := s.read(ctx, strconv.Itoa(n), out, d.Read); st != NotFound {
		return st
	}
	return s.read(ctx, "J", out, func(ctx context.Context, prefix string) (types.Result, error) {
		return d.ReadPort(ctx, prefix, n)
	})
}

// Temp reads temperature port "T"+n.
func (s *Session) Temp(ctx context.Context, n int, out *Sample) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if out == nil {
		return NoSample
	}
	d := s.lm.Dispatcher()
	if d == nil {
		out.fail()
		return Error
	}
	return s.read(ctx, "T", out, func(ctx context.Context, prefix string) (types.Result, error) {
		return d.ReadPort(ctx, prefix, n)
	})
}

func (s *Session) read(ctx context.Context, key string, out *Sample,
	fn func(context.Context, string) (types.Result, error)) Status {
	res, err := fn(ctx, key)
	if err != nil {
		s.logger.Debug("Read failed", zap.String("name", key), zap.Error(err))
		out.fail()
		return types.StatusOf(err)
	}
	out.fill(res)
	return Success
}

func (o *Sample) fail() {
	nan := math.NaN()
	*o = Sample{Value: nan, Volt: nan, Amp: nan}
}

func (o *Sample) fill(res types.Result) {
	*o = Sample{
		Value: res.Get(res.Kind),
		Volt:  res.Volt,
		Amp:   res.Amp,
		Kind:  res.Kind,
	}
}
