package ads1256

import "time"

// Commands
const (
	cmdWakeup  = 0x00
	cmdRdata   = 0x01
	cmdRreg    = 0x10
	cmdWreg    = 0x50
	cmdSelfCal = 0xf0
	cmdSync    = 0xfc
)

// Registers
const (
	regStatus = 0x00
	regMux    = 0x01
	regAdcon  = 0x02
	regDrate  = 0x03
	regIO     = 0x04
	regOFC0   = 0x05
	regFSC0   = 0x08
)

const (
	statusDRDY  = 0x01 // low when a conversion is ready
	statusBUFEN = 0x02

	adconClkOut = 0x20 // CLKOUT = fCLKIN, sensor detect off

	ioDefault = 0xc2 // D1 output high, LED off

	// DefaultMux is AIN0 against AIN1.
	DefaultMux = 0x01
)

// Datasheet timing
const (
	t6        = 7 * time.Microsecond // DIN command to DOUT
	tWreg     = 1 * time.Microsecond
	tSyncWake = 4 * time.Microsecond

	minWait      = 10 * time.Millisecond
	pollInterval = time.Millisecond
	sleepAbove   = 9 * time.Millisecond

	// MaxSettle bounds the settle delay after a mux change.
	MaxSettle = 65 * time.Millisecond
)

func int24BE(b []byte) int32 {
	return int32(uint32(b[0])<<24|uint32(b[1])<<16|uint32(b[2])<<8) >> 8
}

func int24LE(b []byte) int32 {
	return int32(uint32(b[2])<<24|uint32(b[1])<<16|uint32(b[0])<<8) >> 8
}

func uint24LE(b []byte) uint32 {
	return uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
}
