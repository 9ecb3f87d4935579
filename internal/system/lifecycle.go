package system

import (
	"context"
	"sync"

	"github.com/KevinKickass/PowerInsight/internal/config"
	"github.com/KevinKickass/PowerInsight/internal/devices"
	"github.com/KevinKickass/PowerInsight/internal/dispatch"
	"github.com/KevinKickass/PowerInsight/internal/spi"
	"github.com/KevinKickass/PowerInsight/internal/transfer"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LifecycleManager brings the acquisition core up in the fixed order
// bootstrap, finalize, user config, post-config and tears it down on Close.
type LifecycleManager struct {
	config *config.Config
	hw     devices.Hardware
	clock  clock.Clock
	logger *zap.Logger

	registry   *devices.Registry
	loader     *devices.BoardLoader
	composer   *devices.Composer
	refresher  *dispatch.Refresher
	dispatcher *dispatch.Dispatcher

	stateMu      sync.RWMutex
	currentState SystemState
}

// NewLifecycleManager prepares a manager. A nil hw opens real spidev nodes
// and GPIO lines; a nil clk uses the wall clock.
func NewLifecycleManager(cfg *config.Config, hw devices.Hardware, clk clock.Clock, logger *zap.Logger) *LifecycleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hw == nil {
		hw = devices.HostHardware{Logger: logger}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &LifecycleManager{
		config:       cfg,
		hw:           hw,
		clock:        clk,
		logger:       logger,
		currentState: StateSetup,
	}
}

func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

func (lm *LifecycleManager) Registry() *devices.Registry {
	return lm.registry
}

func (lm *LifecycleManager) Dispatcher() *dispatch.Dispatcher {
	return lm.dispatcher
}

func (lm *LifecycleManager) Refresher() *dispatch.Refresher {
	return lm.refresher
}

func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// Open runs every stage. The first failure stops it and is returned as a
// *BootstrapError; bus handles opened so far are released.
func (lm *LifecycleManager) Open(ctx context.Context) error {
	stages := []struct {
		stage Stage
		state SystemState
		run   func(context.Context) error
	}{
		{StageBootstrap, StateBootstrapping, lm.bootstrap},
		{StageFinalize, StateFinalizing, lm.finalize},
		{StageUserConfig, StateConfiguring, lm.userConfig},
		{StagePostConfig, StatePostConfig, lm.postConfig},
	}

	for _, s := range stages {
		if err := lm.setState(s.state); err != nil {
			return &BootstrapError{Stage: s.stage, Category: CategoryRuntime, Err: err}
		}
		lm.logger.Debug("Entering stage", zap.Stringer("stage", s.stage))

		if err := s.run(ctx); err != nil {
			return lm.fail(s.stage, err)
		}
	}

	if err := lm.setState(StateRunning); err != nil {
		return err
	}

	lm.logger.Info("Acquisition core running",
		zap.String("app", lm.config.App.Name),
		zap.Int("sensors", len(lm.registry.Sensors())),
		zap.Int("chips", len(lm.registry.UpdateList())))

	return nil
}

func (lm *LifecycleManager) fail(stage Stage, err error) error {
	berr := &BootstrapError{Stage: stage, Category: Classify(err), Err: err}
	lm.forceState(StateError)
	lm.dispatcher = nil
	lm.refresher = nil

	if cerr := lm.closeDevices(); cerr != nil {
		berr.Category = CategoryDoubleFault
		berr.Err = multierr.Append(err, cerr)
	}

	lm.logger.Error("Bootstrap failed",
		zap.Stringer("stage", stage),
		zap.Stringer("category", berr.Category),
		zap.Error(err))

	return berr
}

func (lm *LifecycleManager) bootstrap(context.Context) error {
	policy, err := lm.config.RangePolicy()
	if err != nil {
		return err
	}

	lm.registry = devices.NewRegistry(transfer.NewTypes(policy), lm.logger.Named("registry"))

	lm.loader, err = devices.NewBoardLoader([]string{lm.config.Paths.LibexecDir})
	if err != nil {
		return err
	}

	lm.composer = devices.NewComposer(lm.hw, devices.ComposerOptions{
		Mode:      lm.config.SPI.DefaultMode,
		SpeedHz:   lm.config.SPI.DefaultSpeedHz,
		TraceSPI:  lm.config.Debug.Has(config.DebugSPI),
		TraceWait: lm.config.Debug.Has(config.DebugWait),
		Clock:     lm.clock,
	}, lm.composerLogger())

	return nil
}

func (lm *LifecycleManager) composerLogger() *zap.Logger {
	if lm.config.Debug.Has(config.DebugConfig) {
		return lm.logger.Named("board")
	}
	return lm.logger.Named("board").WithOptions(zap.IncreaseLevel(zap.InfoLevel))
}

// finalize applies the board files shipped in the libexec directory.
func (lm *LifecycleManager) finalize(context.Context) error {
	paths, err := lm.loader.Discover()
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := lm.apply(path); err != nil {
			return err
		}
	}
	return nil
}

func (lm *LifecycleManager) userConfig(context.Context) error {
	if lm.config.Paths.ConfigFile == "" {
		lm.logger.Debug("No user board file configured")
		return nil
	}
	return lm.apply(lm.config.Paths.ConfigFile)
}

func (lm *LifecycleManager) apply(path string) error {
	board, err := lm.loader.LoadFile(path)
	if err != nil {
		return err
	}
	lm.logger.Info("Applying board file",
		zap.String("path", path),
		zap.String("board", board.Board.ID))
	return lm.composer.Compose(board, lm.registry)
}

// postConfig wires dispatch and fills every chip's cache once.
func (lm *LifecycleManager) postConfig(ctx context.Context) error {
	priority, err := lm.config.PriorityKinds()
	if err != nil {
		return err
	}

	lm.refresher = dispatch.NewRefresher(
		lm.registry.UpdateList(),
		lm.config.Dispatch.RefreshInterval,
		lm.clock,
		lm.logger.Named("refresh"))
	lm.dispatcher = dispatch.NewDispatcher(lm.registry, lm.refresher, priority, lm.logger.Named("dispatch"))

	if err := lm.refresher.Refresh(ctx); err != nil {
		lm.logger.Warn("Initial refresh incomplete", zap.Error(err))
	}
	return nil
}

// Close releases every bus handle and detaches dispatch, so later reads
// report an error instead of touching closed buses. It is safe to call more
// than once.
func (lm *LifecycleManager) Close() error {
	if lm.State() == StateClosed {
		return nil
	}
	err := lm.closeDevices()
	lm.dispatcher = nil
	lm.refresher = nil
	lm.forceState(StateClosed)
	return err
}

func (lm *LifecycleManager) closeDevices() error {
	if lm.composer == nil {
		return nil
	}
	return spi.CloseAll(lm.composer.Devices()...)
}

func (lm *LifecycleManager) setState(state SystemState) error {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		return err
	}
	lm.currentState = state
	return nil
}

func (lm *LifecycleManager) forceState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.currentState = state
}
