// Package ads8344 drives the TI ADS8344 16-bit SAR converter used single
// ended on the power carrier.
package ads8344

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/KevinKickass/PowerInsight/internal/adc"
	"github.com/KevinKickass/PowerInsight/internal/spi"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

// MessageLen is the transfer size of one conversion. The chip needs 25
// clocks per result.
const MessageLen = 4

// Control words by channel: start bit, A2..A0 (datasheet Table I order),
// single ended, external clock.
var chanMap = [8]byte{0x87, 0xc7, 0x97, 0xd7, 0xa7, 0xe7, 0xb7, 0xf7}

// DefaultShift stretches acquisition across the first byte boundary.
const DefaultShift = 1

// MakeMessage builds the outgoing bytes for a conversion of mux. shift moves
// the control word right by that many clocks.
func MakeMessage(mux, shift int) ([]byte, error) {
	if mux < 0 || mux > 7 {
		return nil, fmt.Errorf("invalid mux %d [0,7]", mux)
	}
	if shift < 0 || shift > 7 {
		return nil, fmt.Errorf("invalid shift %d [0,7]", shift)
	}

	control := chanMap[mux]
	return []byte{control >> shift, control << (8 - shift), 0, 0}, nil
}

// Decode extracts the 16-bit result of a conversion and scales it to
// [0,scale). The result alignment follows from the start bit position in tx.
func Decode(tx, rx []byte, scale float64) (float64, error) {
	if len(tx) != MessageLen || len(rx) != MessageLen {
		return 0, fmt.Errorf("message must be %d bytes (tx %d, rx %d)", MessageLen, len(tx), len(rx))
	}
	if tx[0] == 0 {
		return 0, fmt.Errorf("no start bit in first byte")
	}

	shift := bits.Len8(tx[0]) - 1
	word := uint32(rx[1])<<16 | uint32(rx[2])<<8 | uint32(rx[3])
	return float64((word>>shift)&0xffff) * scale / 65536.0, nil
}

type Config struct {
	Shift int
	Scale float64
	Speed physic.Frequency
}

// Chip converts on one ADS8344.
type Chip struct {
	conn   spi.Conn
	cfg    Config
	logger *zap.Logger
	primed bool
}

func New(conn spi.Conn, cfg Config, logger *zap.Logger) (*Chip, error) {
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if cfg.Shift < 0 || cfg.Shift > 7 {
		return nil, fmt.Errorf("invalid shift %d [0,7]", cfg.Shift)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chip{conn: conn, cfg: cfg, logger: logger}, nil
}

// Convert reads one channel. The first conversion after power up selects the
// clock mode and is discarded.
func (c *Chip) Convert(ctx context.Context, ch adc.Channel) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tx, err := MakeMessage(ch.Mux, c.cfg.Shift)
	if err != nil {
		return 0, err
	}

	if !c.primed {
		if _, err := c.conn.Tx(spi.Write(tx...).At(c.cfg.Speed)); err != nil {
			return 0, fmt.Errorf("prime: %w", err)
		}
		c.primed = true
		c.logger.Debug("ADS8344 primed", zap.Int("mux", ch.Mux))
	}

	rx, err := c.conn.Tx(spi.Write(tx...).At(c.cfg.Speed))
	if err != nil {
		return 0, err
	}
	return Decode(tx, rx[0], c.cfg.Scale)
}
