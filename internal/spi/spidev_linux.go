//go:build linux

package spi

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/physic"
)

// struct spi_ioc_transfer from linux/spi/spidev.h
type iocTransfer struct {
	txBuf          uint64
	rxBuf          uint64
	length         uint32
	speedHz        uint32
	delayUsecs     uint16
	bitsPerWord    uint8
	csChange       uint8
	txNbits        uint8
	rxNbits        uint8
	wordDelayUsecs uint8
	pad            uint8
}

const iocMagic = 'k'

func iow(nr, size uintptr) uintptr {
	return 1<<30 | size<<16 | iocMagic<<8 | nr
}

var (
	iocWrMode        = iow(1, 1)
	iocWrBitsPerWord = iow(3, 1)
	iocWrMaxSpeedHz  = iow(4, 4)
)

func iocMessage(n int) uintptr {
	return iow(0, uintptr(n)*unsafe.Sizeof(iocTransfer{}))
}

type spidev struct {
	f *os.File
}

func openSpidev(path string, opts Options) (*spidev, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	s := &spidev{f: f}

	mode := uint8(opts.Mode & 3)
	if err := s.ioctl(iocWrMode, unsafe.Pointer(&mode)); err != nil {
		f.Close()
		return nil, fmt.Errorf("set mode %d: %w", mode, err)
	}

	if opts.BitsPerWord != 0 {
		bits := opts.BitsPerWord
		if err := s.ioctl(iocWrBitsPerWord, unsafe.Pointer(&bits)); err != nil {
			f.Close()
			return nil, fmt.Errorf("set bits per word %d: %w", bits, err)
		}
	}

	if opts.MaxSpeed > 0 {
		hz := uint32(opts.MaxSpeed / physic.Hertz)
		if err := s.ioctl(iocWrMaxSpeedHz, unsafe.Pointer(&hz)); err != nil {
			f.Close()
			return nil, fmt.Errorf("set max speed %s: %w", opts.MaxSpeed, err)
		}
	}

	return s, nil
}

func (s *spidev) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (s *spidev) Message(segs []Segment) error {
	xfers := make([]iocTransfer, len(segs))
	for i, seg := range segs {
		x := &xfers[i]
		if len(seg.Tx) > 0 {
			x.txBuf = uint64(uintptr(unsafe.Pointer(&seg.Tx[0])))
		}
		x.rxBuf = uint64(uintptr(unsafe.Pointer(&seg.Rx[0])))
		x.length = uint32(len(seg.Rx))
		x.speedHz = seg.SpeedHz
		x.delayUsecs = seg.DelayUsecs
		x.bitsPerWord = seg.BitsPerWord
		if seg.CSChange {
			x.csChange = 1
		}
	}

	err := s.ioctl(iocMessage(len(xfers)), unsafe.Pointer(&xfers[0]))
	runtime.KeepAlive(segs)
	return err
}

func (s *spidev) Close() error {
	return s.f.Close()
}
