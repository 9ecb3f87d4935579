package transfer

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned when an input lies outside a conversion's table.
var ErrOutOfRange = errors.New("out of range")

// NIST ITS-90 K-type coefficients, temperature (degC) to millivolts.
var (
	kNegTemp = []float64{
		0.000000000000e+00,
		0.394501280250e-01,
		0.236223735980e-04,
		-0.328589067840e-06,
		-0.499048287770e-08,
		-0.675090591730e-10,
		-0.574103274280e-12,
		-0.310888728940e-14,
		-0.104516093650e-16,
		-0.198892668780e-19,
		-0.163226974860e-22,
	}
	kPosTemp = []float64{
		-0.176004136860e-01,
		0.389212049750e-01,
		0.185587700320e-04,
		-0.994575928740e-07,
		0.318409457190e-09,
		-0.560728448890e-12,
		0.560750590590e-15,
		-0.320207200030e-18,
		0.971511471520e-22,
		-0.121047212750e-25,
	}
)

// Gaussian correction of the positive branch
const (
	kA0 = 0.118597600000e+00
	kA1 = -0.118343200000e-03
	kA2 = 0.126968600000e+03
)

// NIST inverse K-type coefficients, millivolts to degC.
var (
	kInvNeg = []float64{ // -200..0 degC
		0.0000000e+00,
		2.5173462e+01,
		-1.1662878e+00,
		-1.0833638e+00,
		-8.9773540e-01,
		-3.7342377e-01,
		-8.6632643e-02,
		-1.0450598e-02,
		-5.1920577e-04,
	}
	kInvPos = []float64{ // 0..500 degC
		0.000000e+00,
		2.508355e+01,
		7.860106e-02,
		-2.503131e-01,
		8.315270e-02,
		-1.228034e-02,
		9.804036e-04,
		-4.413030e-05,
		8.802193e-06,
		-3.110810e-08,
	}
)

// K-type table limits
const (
	KTempMin = -270.0
	KTempMax = 1372.0
	KmVMin   = -5.891
	KmVMax   = 20.644
)

// poly evaluates coeff[0] + coeff[1]*x + ... by Horner's rule.
func poly(x float64, coeff []float64) float64 {
	a := 0.0
	for i := len(coeff) - 1; i > 0; i-- {
		a += coeff[i]
		a *= x
	}
	return a + coeff[0]
}

func kPosAdj(t float64) float64 {
	return kA0 * math.Exp(kA1*(t-kA2)*(t-kA2))
}

// VoltToTempK converts a thermocouple reading, a fraction of vref volts, to
// degC. Use vref 0.001 for a value already in millivolts.
func VoltToTempK(reading, vref float64) (float64, error) {
	mv := reading * vref * 1000.0
	if mv < KmVMin || mv > KmVMax {
		return math.NaN(), fmt.Errorf("%w: %.4f mV not in [%.3f,%.3f]", ErrOutOfRange, mv, KmVMin, KmVMax)
	}
	if mv < 0 {
		return poly(mv, kInvNeg), nil
	}
	return poly(mv, kInvPos), nil
}

// TempToVoltK converts degC to a thermocouple reading as a fraction of vref
// volts. The result may exceed [0,1).
func TempToVoltK(temp, vref float64) (float64, error) {
	if temp < KTempMin || temp > KTempMax {
		return math.NaN(), fmt.Errorf("%w: %.2f degC not in [%.0f,%.0f]", ErrOutOfRange, temp, KTempMin, KTempMax)
	}
	var mv float64
	if temp < 0 {
		mv = poly(temp, kNegTemp)
	} else {
		mv = poly(temp, kPosTemp) + kPosAdj(temp)
	}
	return mv / (1000.0 * vref), nil
}

// PTS 1k platinum RTD (Callendar-Van Dusen) coefficients.
const (
	ptsA = 3.9083e-3
	ptsB = -5.775e-7
	ptsC = -4.183e-12

	PTSTempMin = -55.0
	PTSTempMax = 155.0

	// DefaultPullup is the divider pull-up in units of R0.
	DefaultPullup = 27.0
)

// RtToTempPTS converts a pull-up divider reading to degC. pullup is the
// pull-up resistor in units of the RTD's R0 (27 for 27k over a 1k RTD).
func RtToTempPTS(reading, pullup float64) (float64, error) {
	if reading < 0 || reading >= 1 {
		return math.NaN(), fmt.Errorf("%w: reading %.6f not in [0,1)", ErrOutOfRange, reading)
	}
	rt := pullup * reading / (1 - reading)
	return (math.Sqrt(ptsA*ptsA-4*ptsB+4*ptsB*rt) - ptsA) / (2 * ptsB), nil
}

// TempToRtPTS converts degC to the RTD resistance ratio Rt/R0. Below 0 degC
// the cubic term applies.
func TempToRtPTS(temp float64) (float64, error) {
	if temp < PTSTempMin || temp > PTSTempMax {
		return math.NaN(), fmt.Errorf("%w: %.2f degC not in [%.0f,%.0f]", ErrOutOfRange, temp, PTSTempMin, PTSTempMax)
	}
	rt := 1 + ptsA*temp + ptsB*temp*temp
	if temp < 0 {
		rt += ptsC * (temp - 100) * temp * temp * temp
	}
	return rt, nil
}

// Filter is a first order low-pass step: factor 0 follows new immediately,
// factor 1 never moves. A NaN last value resets the filter.
func Filter(last, factor, next float64) (float64, error) {
	if factor < 0 || factor > 1 {
		return math.NaN(), fmt.Errorf("%w: filter factor %.3f not in [0,1]", ErrOutOfRange, factor)
	}
	if math.IsNaN(last) {
		last = next
	}
	return next + (last-next)*factor, nil
}
