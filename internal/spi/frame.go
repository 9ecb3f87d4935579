package spi

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Kernel spidev limits
const (
	MaxFrameLen = 1000
	MaxFrames   = 511
	MaxDelay    = 65535 * time.Microsecond
)

// ErrFrame marks a malformed frame supplied by the caller.
var ErrFrame = errors.New("invalid spi frame")

// ErrClosed is returned by Tx once the handle has been closed.
var ErrClosed = errors.New("spi device closed")

// Frame is one leg of a batched transfer. Either Tx is set (the length is
// implied) or Len gives the number of bytes to clock in while sending zeros.
type Frame struct {
	Tx          []byte
	Len         int
	Speed       physic.Frequency // 0 keeps the device default
	Delay       time.Duration    // delay after this frame before the next one
	BitsPerWord uint8            // 0 keeps the device default
	CSChange    bool             // toggle chip select after this frame
}

// Write builds a frame sending tx.
func Write(tx ...byte) Frame {
	return Frame{Tx: tx}
}

// Read builds a read-only frame of n bytes.
func Read(n int) Frame {
	return Frame{Len: n}
}

// After returns a copy of f with a post-frame delay.
func (f Frame) After(d time.Duration) Frame {
	f.Delay = d
	return f
}

// At returns a copy of f with a clock-speed override.
func (f Frame) At(speed physic.Frequency) Frame {
	f.Speed = speed
	return f
}

func (f Frame) length() (int, error) {
	n := f.Len
	if f.Tx != nil {
		if f.Len != 0 && f.Len != len(f.Tx) {
			return 0, fmt.Errorf("%w: length %d does not match %d outgoing bytes", ErrFrame, f.Len, len(f.Tx))
		}
		n = len(f.Tx)
	}

	if n < 1 || n > MaxFrameLen {
		return 0, fmt.Errorf("%w: length %d out of range [1,%d]", ErrFrame, n, MaxFrameLen)
	}
	if f.Delay < 0 || f.Delay > MaxDelay {
		return 0, fmt.Errorf("%w: delay %s out of range [0,%s]", ErrFrame, f.Delay, MaxDelay)
	}
	if f.Speed < 0 {
		return 0, fmt.Errorf("%w: negative speed %s", ErrFrame, f.Speed)
	}

	return n, nil
}

// Segment is a validated frame with its slice of the shared receive buffer,
// in the shape handed to a Transport.
type Segment struct {
	Tx          []byte
	Rx          []byte
	SpeedHz     uint32
	DelayUsecs  uint16
	BitsPerWord uint8
	CSChange    bool
}

func (f Frame) segment(rx []byte) Segment {
	return Segment{
		Tx:          f.Tx,
		Rx:          rx,
		SpeedHz:     uint32(f.Speed / physic.Hertz),
		DelayUsecs:  uint16(f.Delay / time.Microsecond),
		BitsPerWord: f.BitsPerWord,
		CSChange:    f.CSChange,
	}
}
