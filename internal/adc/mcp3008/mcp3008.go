// Package mcp3008 drives the Microchip MCP3008 10-bit SAR converter.
package mcp3008

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/KevinKickass/PowerInsight/internal/adc"
	"github.com/KevinKickass/PowerInsight/internal/spi"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

const (
	MessageLen   = 3
	DefaultShift = 1
	fullScale    = 0x3ff
)

// Start bit, single ended, D2..D0.
var chanMap = [8]byte{0xc0, 0xc8, 0xd0, 0xd8, 0xe0, 0xe8, 0xf0, 0xf8}

// MakeMessage builds the outgoing bytes for a conversion of mux.
func MakeMessage(mux, shift int) ([]byte, error) {
	if mux < 0 || mux > 7 {
		return nil, fmt.Errorf("invalid mux %d [0,7]", mux)
	}
	if shift < 0 || shift > 7 {
		return nil, fmt.Errorf("invalid shift %d [0,7]", shift)
	}

	control := chanMap[mux]
	return []byte{control >> shift, control << (8 - shift), 0}, nil
}

// Decode extracts the 10-bit result and scales it to [0,scale].
func Decode(tx, rx []byte, scale float64) (float64, error) {
	if len(tx) != MessageLen || len(rx) != MessageLen {
		return 0, fmt.Errorf("message must be %d bytes (tx %d, rx %d)", MessageLen, len(tx), len(rx))
	}
	if tx[0] == 0 {
		return 0, fmt.Errorf("no start bit in first byte")
	}

	shift := bits.Len8(tx[0]) - 1
	word := uint32(rx[0])<<16 | uint32(rx[1])<<8 | uint32(rx[2])
	return float64((word>>shift)&fullScale) * scale / fullScale, nil
}

type Config struct {
	Shift int
	Scale float64
	Speed physic.Frequency
}

type Chip struct {
	conn   spi.Conn
	cfg    Config
	logger *zap.Logger
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

func (c *Chip) Convert(ctx context.Context, ch adc.Channel) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tx, err := MakeMessage(ch.Mux, c.cfg.Shift)
	if err != nil {
		return 0, err
	}

	rx, err := c.conn.Tx(spi.Write(tx...).At(c.cfg.Speed))
	if err != nil {
		return 0, err
	}
	return Decode(tx, rx[0], c.cfg.Scale)
}
