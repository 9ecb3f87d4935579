// Package transfer converts raw ADC ratios into engineering units.
//
// A raw reading is the fraction [0,1) of the converter's reference that the
// chip reported. Functions here are pure; range-limited ones return
// ErrOutOfRange and leave the policy decision to the caller (see Policy).
package transfer

// Default references of the carrier boards
const (
	DefaultVref = 4.096
	DefaultVcc  = 5.0
)

// Divider scales a reading taken across a resistor divider.
func Divider(reading, vref, ratio float64) float64 {
	return reading * vref * ratio
}

// Resistor divider ratios of the voltage inputs
const (
	Ratio5V  = 414.0 / 249
	Ratio12V = 535.0 / 133
	Ratio3V3 = 121.0 / 110
)

// Sens5V converts a 5 V input reading to volts.
func Sens5V(reading, vref float64) float64 { return Divider(reading, vref, Ratio5V) }

// Sens12V converts a 12 V input reading to volts.
func Sens12V(reading, vref float64) float64 { return Divider(reading, vref, Ratio12V) }

// Sens3V3 converts a 3.3 V input reading to volts.
func Sens3V3(reading, vref float64) float64 { return Divider(reading, vref, Ratio3V3) }

// Hall-effect current sensor sensitivities in V/A on a 5 V supply.
const (
	ACS713x20 = 0.185
	ACS713x30 = 0.133
	ACS723x10 = 0.400
	ACS723x20 = 0.200
)

// HallCurrent converts a hall sensor reading to amps. The sensors idle at 10%
// of the supply.
func HallCurrent(reading, sensitivity float64) float64 {
	return (reading - 0.1) * (DefaultVcc / sensitivity)
}

// Shunt amplifier network: a 10x differential amplifier across the shunt
// feeding a summing stage with R1=15.0k R2=30.1k R3=10.0k R4=10.2k R5=309k.
// Sensor = Vcc*shuntOffset + I*Rshunt*shuntGain/shuntDen (as ratio of Vcc).
const (
	shuntDen    = 95157.0
	shuntOffset = 4600.2 / shuntDen
	shuntGain   = 1421461.8
)

// ShuntCurrent converts a shunt amplifier reading to amps. shunt is in ohms.
func ShuntCurrent(reading, vcc, shunt float64) float64 {
	return (reading - shuntOffset) * vcc * (shuntDen / (shunt * shuntGain))
}

// Linear applies reading*scale + offset.
func Linear(reading, scale, offset float64) float64 {
	return reading*scale + offset
}
