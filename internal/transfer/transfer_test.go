package transfer

import (
	"errors"
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDividers(t *testing.T) {
	test.That(t, Sens5V(0.5, 4.096), test.ShouldAlmostEqual, 0.5*4.096*414.0/249)
	test.That(t, Sens12V(0.5, 4.096), test.ShouldAlmostEqual, 0.5*4.096*535.0/133)
	test.That(t, Sens3V3(0.5, 4.096), test.ShouldAlmostEqual, 0.5*4.096*121.0/110)
}

func TestCurrentSensors(t *testing.T) {
	test.That(t, HallCurrent(0.1, ACS713x20), test.ShouldAlmostEqual, 0.0)
	test.That(t, HallCurrent(0.2, ACS723x10), test.ShouldAlmostEqual, 0.1*5.0/0.4)

	// Zero current sits at the amplifier offset
	test.That(t, ShuntCurrent(4600.2/95157, 5.0, 0.010), test.ShouldAlmostEqual, 0.0)
	test.That(t, ShuntCurrent(0.5, 5.0, 0.010), test.ShouldBeGreaterThan, ShuntCurrent(0.5, 5.0, 0.050))
}

func TestThermocoupleRoundTrip(t *testing.T) {
	for _, temp := range []float64{-150, -20, 0, 25, 100, 250, 480} {
		v, err := TempToVoltK(temp, 1.0)
		test.That(t, err, test.ShouldBeNil)
		back, err := VoltToTempK(v, 1.0)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back, test.ShouldAlmostEqual, temp, 0.1)
	}

	mv, err := TempToVoltK(100, 0.001)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mv, test.ShouldAlmostEqual, 4.096, 0.001)
}

func TestThermocoupleRange(t *testing.T) {
	_, err := TempToVoltK(1400, 1.0)
	test.That(t, errors.Is(err, ErrOutOfRange), test.ShouldBeTrue)

	v, err := VoltToTempK(0.030, 1.0)
	test.That(t, errors.Is(err, ErrOutOfRange), test.ShouldBeTrue)
	test.That(t, math.IsNaN(v), test.ShouldBeTrue)
}

func TestRTDRoundTrip(t *testing.T) {
	for _, temp := range []float64{0, 25, 85, 150} {
		rt, err := TempToRtPTS(temp)
		test.That(t, err, test.ShouldBeNil)
		reading := rt / (DefaultPullup + rt)
		back, err := RtToTempPTS(reading, DefaultPullup)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back, test.ShouldAlmostEqual, temp, 0.001)
	}

	rt, err := TempToRtPTS(-40)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rt, test.ShouldBeLessThan, 1.0)

	_, err = RtToTempPTS(1.0, DefaultPullup)
	test.That(t, errors.Is(err, ErrOutOfRange), test.ShouldBeTrue)
	_, err = TempToRtPTS(200)
	test.That(t, errors.Is(err, ErrOutOfRange), test.ShouldBeTrue)
}

func TestFilter(t *testing.T) {
	v, err := Filter(math.NaN(), 0.8, 3.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 3.0)

	v, err = Filter(1.0, 0.5, 3.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldAlmostEqual, 2.0)

	_, err = Filter(1.0, 1.5, 3.0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTypesResolve(t *testing.T) {
	types := NewTypes(PolicyError)

	fn, err := types.Resolve("linear", Params{"scale": 2.0})
	test.That(t, err, test.ShouldBeNil)
	v, err := fn(0.25)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 0.5)

	fn, err = types.Resolve("5v", Params{"vref": 2.048})
	test.That(t, err, test.ShouldBeNil)
	v, err = fn(0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldAlmostEqual, Sens5V(0.5, 2.048))

	_, err = types.Resolve("nope", nil)
	test.That(t, errors.Is(err, ErrUnknownType), test.ShouldBeTrue)

	_, err = types.Resolve("PTS", Params{"pullup": 0})
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, types.Register("5v", builtins["raw"]), test.ShouldNotBeNil)
	test.That(t, types.Register("custom", builtins["raw"]), test.ShouldBeNil)
	test.That(t, types.Has("custom"), test.ShouldBeTrue)
}

func TestRangePolicy(t *testing.T) {
	strict, err := NewTypes(PolicyError).Resolve("PTS", nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = strict(1.5)
	test.That(t, errors.Is(err, ErrOutOfRange), test.ShouldBeTrue)

	lenient, err := NewTypes(PolicyNaN).Resolve("PTS", nil)
	test.That(t, err, test.ShouldBeNil)
	v, err := lenient(1.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.IsNaN(v), test.ShouldBeTrue)

	p, err := ParsePolicy("NaN")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, PolicyNaN)
	_, err = ParsePolicy("maybe")
	test.That(t, err, test.ShouldNotBeNil)
}
