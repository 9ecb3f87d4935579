// Package spi issues batched transfers to Linux spidev devices.
package spi

import (
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Conn is the part of a bus handle chip drivers depend on.
type Conn interface {
	Tx(frames ...Frame) ([][]byte, error)
}

// Transport performs one atomic batched message. Each segment's Rx slice
// must be filled in place.
type Transport interface {
	Message(segs []Segment) error
	Close() error
}

// Options configure a bus handle when it is opened.
type Options struct {
	Mode        spi.Mode
	MaxSpeed    physic.Frequency
	BitsPerWord uint8
	Trace       bool
}

// Device is an exclusively owned spidev handle.
type Device struct {
	path      string
	transport Transport
	logger    *zap.Logger
	trace     bool

	mu    sync.Mutex
	calls int
}

// Open opens a spidev node and applies mode, speed and word size.
func Open(path string, opts Options, logger *zap.Logger) (*Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t, err := openSpidev(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	logger.Debug("SPI device opened",
		zap.String("path", path),
		zap.Int("mode", int(opts.Mode)),
		zap.String("speed", opts.MaxSpeed.String()))

	return NewDevice(path, t, opts.Trace, logger), nil
}

// NewDevice wraps an already opened transport.
func NewDevice(path string, t Transport, trace bool, logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{
		path:      path,
		transport: t,
		logger:    logger,
		trace:     trace,
	}
}

// Path returns the device node the handle was opened on.
func (d *Device) Path() string {
	return d.path
}

// Tx issues all frames as one kernel transfer and returns the bytes received
// during each frame.
func (d *Device) Tx(frames ...Frame) ([][]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrFrame)
	}
	if len(frames) > MaxFrames {
		return nil, fmt.Errorf("%w: %d frames exceeds %d", ErrFrame, len(frames), MaxFrames)
	}

	lengths := make([]int, len(frames))
	total := 0
	for i, f := range frames {
		n, err := f.length()
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		lengths[i] = n
		total += n
	}

	// One receive buffer for the whole batch, sliced per frame
	rx := make([]byte, total)
	segs := make([]Segment, len(frames))
	offset := 0
	for i, f := range frames {
		end := offset + lengths[i]
		segs[i] = f.segment(rx[offset:end:end])
		offset = end
	}

	d.mu.Lock()
	if d.transport == nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", d.path, ErrClosed)
	}
	err := d.transport.Message(segs)
	d.calls++
	d.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("spi transfer on %s failed: %w", d.path, err)
	}

	out := make([][]byte, len(segs))
	for i := range segs {
		out[i] = segs[i].Rx
		if d.trace {
			d.logger.Debug("SPI frame",
				zap.String("device", d.path),
				zap.Int("frame", i),
				zap.String("tx", hex.EncodeToString(segs[i].Tx)),
				zap.String("rx", hex.EncodeToString(segs[i].Rx)),
				zap.Uint16("delay_us", segs[i].DelayUsecs))
		}
	}

	return out, nil
}

// Calls returns how many batched transfers were issued.
func (d *Device) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Close releases the handle.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transport == nil {
		return nil
	}
	err := d.transport.Close()
	d.transport = nil
	return err
}

// CloseAll closes every device and reports all failures together.
func CloseAll(devices ...*Device) error {
	var err error
	for _, d := range devices {
		if d == nil {
			continue
		}
		if cerr := d.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", d.path, cerr))
		}
	}
	return err
}
