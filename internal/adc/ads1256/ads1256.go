// Package ads1256 drives the TI ADS1256 24-bit delta-sigma converter on the
// temperature carrier.
//
// The chip is configured in one batched transfer, self-calibrates, and is
// then polled for DRDY before every data read. The offset and full-scale
// calibration registers are read back after each calibration and exposed as
// unitless Offset and Scale values.
package ads1256

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/PowerInsight/internal/adc"
	"github.com/KevinKickass/PowerInsight/internal/spi"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ErrNotReady is returned when DRDY did not assert within the timeout.
var ErrNotReady = errors.New("ads1256 not ready")

// Config selects how the chip is run.
type Config struct {
	Rate    float64       // samples per second, see SelectRate
	Gain    int           // PGA gain, a power of two in [1,64]
	Buffer  bool          // enable the analog input buffer
	Settle  time.Duration // delay after a mux change
	Timeout time.Duration // DRDY timeout for reads
	Clock   clock.Clock
	// TraceWait logs every DRDY poll outcome at debug level.
	TraceWait bool
}

func (c *Config) defaults() {
	if c.Rate == 0 {
		c.Rate = 1000
	}
	if c.Gain == 0 {
		c.Gain = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 100 * time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// Chip is one ADS1256 bound to an exclusively owned bus handle.
type Chip struct {
	conn   spi.Conn
	cfg    Config
	clock  clock.Clock
	logger *zap.Logger

	state  State
	rate   Rate
	gain   int
	mux    byte
	offset float64
	scale  float64
}

func New(conn spi.Conn, cfg Config, logger *zap.Logger) *Chip {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chip{
		conn:   conn,
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: logger,
		state:  StateUnconfigured,
		gain:   cfg.Gain,
		mux:    DefaultMux,
		scale:  1,
	}
}

func (c *Chip) State() State { return c.state }

// Rate returns the table row selected by the last Initialize.
func (c *Chip) Rate() Rate { return c.rate }

// Offset is OFC normalized by the rate's alpha.
func (c *Chip) Offset() float64 { return c.offset }

// Scale is FSC normalized by the rate's nominal full scale.
func (c *Chip) Scale() float64 { return c.scale }

func (c *Chip) setState(to State) error {
	if err := ValidateTransition(c.state, to); err != nil {
		return err
	}
	c.state = to
	return nil
}

// WaitReady polls the STATUS register until DRDY goes low or timeout passes.
// Timeouts below 10ms are raised to 10ms.
func (c *Chip) WaitReady(ctx context.Context, timeout time.Duration) (ReadyState, error) {
	if timeout < minWait {
		timeout = minWait
	}

	start := c.clock.Now()
	polls := 0
	for {
		rx, err := c.conn.Tx(
			spi.Write(cmdRreg|regStatus, 0x00).After(t6),
			spi.Read(1),
		)
		if err != nil {
			return ReadyError, fmt.Errorf("read status: %w", err)
		}
		polls++

		if rx[1][0]&statusDRDY == 0 {
			if c.cfg.TraceWait {
				c.logger.Debug("DRDY",
					zap.Int("polls", polls),
					zap.Duration("elapsed", c.clock.Since(start)))
			}
			return Ready, nil
		}

		if c.clock.Since(start) > timeout {
			if c.cfg.TraceWait {
				c.logger.Debug("DRDY timeout",
					zap.Int("polls", polls),
					zap.Duration("timeout", timeout))
			}
			return NotReady, nil
		}
		if err := ctx.Err(); err != nil {
			return ReadyError, err
		}

		if timeout > sleepAbove {
			c.clock.Sleep(pollInterval)
		}
	}
}

// Initialize configures rate, gain and the input buffer, runs a
// self-calibration, restarts conversion and reads back the calibration
// registers.
func (c *Chip) Initialize(ctx context.Context, sps float64, gain int) error {
	if err := validGain(gain); err != nil {
		return err
	}
	if err := c.setState(StateCalibrating); err != nil {
		return err
	}

	if err := c.calibrate(ctx, SelectRate(sps), gain); err != nil {
		c.state = StateUnconfigured
		return err
	}

	return c.setState(StateReady)
}

func (c *Chip) calibrate(ctx context.Context, rate Rate, gain int) error {
	status := byte(0)
	if c.cfg.Buffer {
		status |= statusBUFEN
	}

	calDelay := rate.SelfCal
	if calDelay > spi.MaxDelay {
		calDelay = spi.MaxDelay
	}

	_, err := c.conn.Tx(
		spi.Write(cmdWreg|regStatus, 0x04, status, c.mux, adconClkOut|GainToReg(gain), rate.Code, ioDefault).After(tWreg),
		spi.Write(cmdSelfCal).After(calDelay),
	)
	if err != nil {
		return fmt.Errorf("configure: %w", err)
	}

	if err := c.expectReady(ctx, 2*rate.SelfCal+minWait, "self-calibration"); err != nil {
		return err
	}

	if err := c.restart(0); err != nil {
		return err
	}
	if err := c.expectReady(ctx, c.cfg.Timeout, "restart"); err != nil {
		return err
	}

	rx, err := c.conn.Tx(
		spi.Write(cmdRreg|regOFC0, 0x05).After(t6),
		spi.Read(6),
	)
	if err != nil {
		return fmt.Errorf("read calibration: %w", err)
	}

	c.rate = rate
	c.gain = gain
	c.offset = float64(int24LE(rx[1][0:3])) / rate.Alpha
	c.scale = float64(uint24LE(rx[1][3:6])) / rate.FSC

	c.logger.Debug("ADS1256 calibrated",
		zap.Float64("sps", rate.SPS),
		zap.Int("gain", gain),
		zap.Float64("offset", c.offset),
		zap.Float64("scale", c.scale))

	return nil
}

func (c *Chip) expectReady(ctx context.Context, timeout time.Duration, phase string) error {
	state, err := c.WaitReady(ctx, timeout)
	if err != nil {
		return fmt.Errorf("%s: %w", phase, err)
	}
	if state != Ready {
		return fmt.Errorf("%s: %w after %s", phase, ErrNotReady, timeout)
	}
	return nil
}

func (c *Chip) restart(settle time.Duration) error {
	if settle < tSyncWake {
		settle = tSyncWake
	}
	if _, err := c.conn.Tx(spi.Write(cmdSync).After(settle), spi.Write(cmdWakeup)); err != nil {
		return fmt.Errorf("restart conversion: %w", err)
	}
	return nil
}

// ReadRaw waits for DRDY and returns the conversion as a signed fraction of
// full range at the given gain.
func (c *Chip) ReadRaw(ctx context.Context, gain int, timeout time.Duration) (float64, error) {
	if c.state != StateReady && c.state != StateReading {
		return 0, fmt.Errorf("read in state %s", c.state)
	}
	if gain < 1 {
		return 0, fmt.Errorf("gain %d must be positive", gain)
	}

	if err := c.expectReady(ctx, timeout, "read"); err != nil {
		return 0, err
	}

	rx, err := c.conn.Tx(spi.Write(cmdRdata).After(t6), spi.Read(3))
	if err != nil {
		return 0, fmt.Errorf("read data: %w", err)
	}

	return float64(int24BE(rx[1])) / (float64(gain) * (1 << 23)), nil
}

// SetMux selects an input pair and restarts conversion. settle is clamped to
// [0, MaxSettle].
func (c *Chip) SetMux(ctx context.Context, mux byte, settle time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if settle < 0 || settle > MaxSettle {
		clamped := settle
		if clamped < 0 {
			clamped = 0
		} else {
			clamped = MaxSettle
		}
		c.logger.Warn("Settle delay out of range, clamped",
			zap.Duration("requested", settle),
			zap.Duration("used", clamped))
		settle = clamped
	}

	if _, err := c.conn.Tx(spi.Write(cmdWreg|regMux, 0x00, mux).After(tWreg)); err != nil {
		return fmt.Errorf("write mux: %w", err)
	}
	c.mux = mux

	return c.restart(settle)
}

// Calibrate re-runs Initialize with the configured rate and gain.
func (c *Chip) Calibrate(ctx context.Context) error {
	return c.Initialize(ctx, c.cfg.Rate, c.cfg.Gain)
}

// Convert reads one channel; ch.Mux is the MUX register value.
func (c *Chip) Convert(ctx context.Context, ch adc.Channel) (float64, error) {
	if ch.Mux < 0 || ch.Mux > 0xff {
		return 0, fmt.Errorf("mux 0x%x out of range", ch.Mux)
	}
	if c.state == StateUnconfigured {
		if err := c.Calibrate(ctx); err != nil {
			return 0, err
		}
	}
	if err := c.setState(StateReading); err != nil {
		return 0, err
	}
	defer func() { c.state = StateReady }()

	if byte(ch.Mux) != c.mux {
		if err := c.SetMux(ctx, byte(ch.Mux), c.cfg.Settle); err != nil {
			return 0, err
		}
	}

	return c.ReadRaw(ctx, c.gain, c.cfg.Timeout)
}
