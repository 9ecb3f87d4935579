// Package adc holds what the converter drivers share: channel addressing,
// the per-chip reading cache and the Update List contract.
package adc

import (
	"context"
	"fmt"
)

// Channel addresses one input of a chip. Bank is the carrier bank that must
// be selected before converting; a negative bank means no routing.
type Channel struct {
	Mux  int
	Bank int
}

// NoBank marks a channel that needs no bank select.
const NoBank = -1

// Mux returns an unrouted channel.
func Mux(mux int) Channel {
	return Channel{Mux: mux, Bank: NoBank}
}

func (c Channel) String() string {
	if c.Bank < 0 {
		return fmt.Sprintf("mux %d", c.Mux)
	}
	return fmt.Sprintf("mux %d bank %d", c.Mux, c.Bank)
}

// Source produces raw readings, fractions of the chip's full range.
type Source interface {
	Name() string
	Raw(ctx context.Context, ch Channel) (float64, error)
}

// Updater is an Update List entry. Update refreshes every cached reading the
// chip owns.
type Updater interface {
	Name() string
	Update(ctx context.Context) error
}

// Chip is a source whose channels are refreshed by the Update List.
type Chip interface {
	Source
	Updater
	Track(ch Channel)
	Channels() []Channel
}

// Converter performs one live conversion.
type Converter interface {
	Convert(ctx context.Context, ch Channel) (float64, error)
}

// Calibrator is implemented by converters that recalibrate on refresh.
type Calibrator interface {
	Calibrate(ctx context.Context) error
}

// BankSelector routes the carrier's analog bank lines.
type BankSelector interface {
	Select(bank int) error
}
