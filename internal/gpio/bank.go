// Package gpio drives the carrier's analog bank select lines.
package gpio

import (
	"fmt"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// BankSelector presents a bank number on a set of output lines, least
// significant bit first.
type BankSelector struct {
	lines   []gpio.PinOut
	current int
	logger  *zap.Logger
}

// Open looks the named lines up in the host's GPIO registry.
func Open(names []string, logger *zap.Logger) (*BankSelector, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio host init: %w", err)
	}

	lines := make([]gpio.PinOut, 0, len(names))
	for _, name := range names {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("no gpio line named %q", name)
		}
		lines = append(lines, pin)
	}

	return NewBankSelector(lines, logger)
}

func NewBankSelector(lines []gpio.PinOut, logger *zap.Logger) (*BankSelector, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("bank selector needs at least one line")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BankSelector{
		lines:   lines,
		current: -1,
		logger:  logger,
	}, nil
}

// Banks returns how many banks the lines can address.
func (b *BankSelector) Banks() int {
	return 1 << len(b.lines)
}

// Select drives the lines for bank. Re-selecting the current bank is a no-op.
func (b *BankSelector) Select(bank int) error {
	if bank < 0 || bank >= b.Banks() {
		return fmt.Errorf("bank %d out of range [0,%d)", bank, b.Banks())
	}
	if bank == b.current {
		return nil
	}

	for i, line := range b.lines {
		level := gpio.Low
		if bank&(1<<i) != 0 {
			level = gpio.High
		}
		if err := line.Out(level); err != nil {
			b.current = -1
			return fmt.Errorf("set %s: %w", line, err)
		}
	}
	b.current = bank

	b.logger.Debug("Bank selected", zap.Int("bank", bank))
	return nil
}

// Current returns the selected bank, or -1 before the first Select.
func (b *BankSelector) Current() int {
	return b.current
}
