package devices

import (
	"fmt"
	"time"

	"github.com/KevinKickass/PowerInsight/internal/adc"
	"github.com/KevinKickass/PowerInsight/internal/adc/ads1256"
	"github.com/KevinKickass/PowerInsight/internal/adc/ads8344"
	"github.com/KevinKickass/PowerInsight/internal/adc/mcp3008"
	"github.com/KevinKickass/PowerInsight/internal/gpio"
	"github.com/KevinKickass/PowerInsight/internal/spi"
	"github.com/KevinKickass/PowerInsight/internal/types"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	periphspi "periph.io/x/conn/v3/spi"
)

// Hardware opens the buses and bank lines a board names.
type Hardware interface {
	OpenBus(cfg types.BusConfig, opts spi.Options) (*spi.Device, error)
	OpenBanks(cfg types.BankConfig) (adc.BankSelector, error)
}

// HostHardware opens spidev nodes and host GPIO lines.
type HostHardware struct {
	Logger *zap.Logger
}

func (h HostHardware) OpenBus(cfg types.BusConfig, opts spi.Options) (*spi.Device, error) {
	return spi.Open(cfg.Device, opts, h.Logger)
}

func (h HostHardware) OpenBanks(cfg types.BankConfig) (adc.BankSelector, error) {
	return gpio.Open(cfg.Lines, h.Logger)
}

// ComposerOptions are the defaults applied to bus and chip entries that
// leave them out.
type ComposerOptions struct {
	Mode      int
	SpeedHz   int64
	TraceSPI  bool
	TraceWait bool
	Clock     clock.Clock
}

// Composer applies board descriptions to a registry: it opens the buses,
// builds the chips and registers templates, headers and sensors in file
// order.
type Composer struct {
	hw     Hardware
	opts   ComposerOptions
	logger *zap.Logger

	buses   map[string]*spi.Device
	devices []*spi.Device
	banks   adc.BankSelector
}

func NewComposer(hw Hardware, opts ComposerOptions, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hw == nil {
		hw = HostHardware{Logger: logger}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Composer{
		hw:     hw,
		opts:   opts,
		logger: logger,
		buses:  make(map[string]*spi.Device),
	}
}

// Devices returns every bus handle opened so far.
func (c *Composer) Devices() []*spi.Device {
	return append([]*spi.Device(nil), c.devices...)
}

// Compose registers everything board describes.
func (c *Composer) Compose(board *types.BoardFile, reg *Registry) error {
	c.logger.Info("Composing board",
		zap.String("board", board.Board.ID),
		zap.Int("chips", len(board.Chips)),
		zap.Int("headers", len(board.Headers)))

	for _, bus := range board.Buses {
		if err := c.openBus(bus); err != nil {
			return fmt.Errorf("board %s: %w", board.Board.ID, err)
		}
	}

	if board.Banks != nil {
		if c.banks != nil {
			return fmt.Errorf("board %s: %w: bank lines already configured", board.Board.ID, types.ErrConfig)
		}
		banks, err := c.hw.OpenBanks(*board.Banks)
		if err != nil {
			return fmt.Errorf("board %s: banks: %w", board.Board.ID, err)
		}
		c.banks = banks
	}

	for _, chip := range board.Chips {
		if err := c.addChip(chip, reg); err != nil {
			return fmt.Errorf("board %s: chip %s: %w", board.Board.ID, chip.Name, err)
		}
	}

	for _, tmpl := range board.Templates {
		if err := reg.AddTemplate(tmpl); err != nil {
			return fmt.Errorf("board %s: %w", board.Board.ID, err)
		}
	}

	for _, hdr := range board.Headers {
		c.logger.Debug("Processing header",
			zap.String("prefix", hdr.Prefix),
			zap.String("template", hdr.Template))

		if len(hdr.Connectors) > 0 {
			if _, err := reg.AddConnectors(hdr.Prefix, hdr.Template, hdr.Connectors...); err != nil {
				return fmt.Errorf("board %s: %w", board.Board.ID, err)
			}
		}
		if len(hdr.Sensors) > 0 {
			if _, err := reg.AddSensors(hdr.Prefix, hdr.Sensors...); err != nil {
				return fmt.Errorf("board %s: %w", board.Board.ID, err)
			}
		}
	}

	if len(board.Sensors) > 0 {
		if _, err := reg.DeclareSensors(board.Sensors...); err != nil {
			return fmt.Errorf("board %s: %w", board.Board.ID, err)
		}
	}

	c.logger.Info("Board composition complete",
		zap.String("board", board.Board.ID),
		zap.Int("sensors", len(reg.Sensors())))

	return nil
}

func (c *Composer) openBus(cfg types.BusConfig) error {
	if _, exists := c.buses[cfg.Name]; exists {
		return fmt.Errorf("%w: duplicate bus %q", types.ErrConfig, cfg.Name)
	}

	mode := c.opts.Mode
	if cfg.Mode != nil {
		mode = *cfg.Mode
	}
	speed := cfg.SpeedHz
	if speed == 0 {
		speed = c.opts.SpeedHz
	}
	bits := cfg.BitsPerWord
	if bits == 0 {
		bits = 8
	}

	dev, err := c.hw.OpenBus(cfg, spi.Options{
		Mode:        periphspi.Mode(mode),
		MaxSpeed:    physic.Frequency(speed) * physic.Hertz,
		BitsPerWord: bits,
		Trace:       c.opts.TraceSPI,
	})
	if err != nil {
		return fmt.Errorf("bus %s: %w", cfg.Name, err)
	}

	c.buses[cfg.Name] = dev
	c.devices = append(c.devices, dev)
	return nil
}

func (c *Composer) addChip(cfg types.ChipConfig, reg *Registry) error {
	dev, ok := c.buses[cfg.Bus]
	if !ok {
		return fmt.Errorf("%w: unknown bus %q", types.ErrConfig, cfg.Bus)
	}
	logger := c.logger.With(zap.String("chip", cfg.Name))

	conv, err := c.converter(cfg, dev, logger)
	if err != nil {
		return err
	}

	sampler, err := adc.NewSampler(cfg.Name, conv, adc.SamplerConfig{
		MaxAge: time.Duration(cfg.MaxAgeMs) * time.Millisecond,
		Filter: cfg.Filter,
		Banks:  c.banks,
		Clock:  c.opts.Clock,
	}, logger)
	if err != nil {
		return err
	}

	return reg.AddChip(cfg.Name, sampler)
}

func (c *Composer) converter(cfg types.ChipConfig, dev *spi.Device, logger *zap.Logger) (adc.Converter, error) {
	speed := physic.Frequency(cfg.SpeedHz) * physic.Hertz
	shift := 1
	if cfg.Shift != nil {
		shift = *cfg.Shift
	}

	switch cfg.Family {
	case types.ChipADS1256:
		return ads1256.New(dev, ads1256.Config{
			Rate:      cfg.Rate,
			Gain:      cfg.Gain,
			Buffer:    cfg.Buffer,
			Settle:    time.Duration(cfg.SettleUs) * time.Microsecond,
			Timeout:   time.Duration(cfg.TimeoutMs) * time.Millisecond,
			Clock:     c.opts.Clock,
			TraceWait: c.opts.TraceWait,
		}, logger), nil
	case types.ChipADS8344:
		return ads8344.New(dev, ads8344.Config{Shift: shift, Scale: cfg.Scale, Speed: speed}, logger)
	case types.ChipMCP3008:
		return mcp3008.New(dev, mcp3008.Config{Shift: shift, Scale: cfg.Scale, Speed: speed}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown chip family %q", types.ErrConfig, cfg.Family)
	}
}
