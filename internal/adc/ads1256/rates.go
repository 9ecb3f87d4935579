package ads1256

import "time"

// Rate is one row of the data rate table.
type Rate struct {
	SPS     float64
	Code    byte          // DRATE register value
	SelfCal time.Duration // self-calibration time at PGA 1
	Alpha   float64       // OFC normalization
	FSC     float64       // nominal FSC after self-calibration
}

const (
	alpha      = 0x400000
	fscNominal = 0x45ecc0
)

// rates is ordered by descending sample rate.
var rates = [...]Rate{
	{30000, 0xf0, 596 * time.Microsecond, alpha, fscNominal},
	{15000, 0xe0, 896 * time.Microsecond, alpha, fscNominal},
	{7500, 0xd0, 1210 * time.Microsecond, alpha, fscNominal},
	{3750, 0xc0, 1800 * time.Microsecond, alpha, fscNominal},
	{2000, 0xb0, 3100 * time.Microsecond, alpha, fscNominal},
	{1000, 0xa1, 5600 * time.Microsecond, alpha, fscNominal},
	{500, 0x92, 10600 * time.Microsecond, alpha, fscNominal},
	{100, 0x82, 50700 * time.Microsecond, alpha, fscNominal},
	{60, 0x72, 83900 * time.Microsecond, alpha, fscNominal},
	{50, 0x63, 100700 * time.Microsecond, alpha, fscNominal},
	{30, 0x53, 167400 * time.Microsecond, alpha, fscNominal},
	{25, 0x43, 201 * time.Millisecond, alpha, fscNominal},
	{15, 0x33, 334 * time.Millisecond, alpha, fscNominal},
	{10, 0x23, 501 * time.Millisecond, alpha, fscNominal},
	{5, 0x13, 1001 * time.Millisecond, alpha, fscNominal},
	{2.5, 0x03, 2001 * time.Millisecond, alpha, fscNominal},
}

// SelectRate returns the fastest row not above sps, clamped to the table.
func SelectRate(sps float64) Rate {
	for _, r := range rates {
		if r.SPS <= sps {
			return r
		}
	}
	return rates[len(rates)-1]
}

// Rates returns a copy of the table.
func Rates() []Rate {
	out := make([]Rate, len(rates))
	copy(out, rates[:])
	return out
}
