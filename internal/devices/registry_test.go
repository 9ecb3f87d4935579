package devices

import (
	"context"
	"errors"
	"testing"

	"github.com/KevinKickass/PowerInsight/internal/adc"
	"github.com/KevinKickass/PowerInsight/internal/transfer"
	"github.com/KevinKickass/PowerInsight/internal/types"
	"go.viam.com/test"
)

type muxConverter struct {
	values map[int]float64
	calls  int
}

func (m *muxConverter) Convert(_ context.Context, ch adc.Channel) (float64, error) {
	m.calls++
	return m.values[ch.Mux], nil
}

func newTestRegistry(t *testing.T, values map[int]float64) (*Registry, *muxConverter) {
	t.Helper()
	conv := &muxConverter{values: values}
	chip, err := adc.NewSampler("adc0", conv, adc.SamplerConfig{}, nil)
	test.That(t, err, test.ShouldBeNil)

	reg := NewRegistry(transfer.NewTypes(transfer.PolicyError), nil)
	test.That(t, reg.AddChip("adc0", chip), test.ShouldBeNil)
	return reg, conv
}

func route(mux int) types.Route {
	return types.Route{Chip: "adc0", Mux: mux}
}

func linear(scale float64) *types.BindingConfig {
	return &types.BindingConfig{Type: "linear", Params: transfer.Params{"scale": scale}}
}

func TestAddConnectorsWithTemplate(t *testing.T) {
	reg, _ := newTestRegistry(t, map[int]float64{0: 0.5, 1: 0.25})

	err := reg.AddTemplate(types.TemplateConfig{
		Name: "rail",
		Bindings: types.Bindings{
			Power: &types.BindingConfig{Type: PowerProduct},
			Volt:  linear(24),
			Amp:   linear(10),
		},
	})
	test.That(t, err, test.ShouldBeNil)

	n, err := reg.AddConnectors("J", "rail",
		types.SensorConfig{Conn: "1", Routes: map[string]types.Route{"volt": route(0), "amp": route(1)}},
		types.SensorConfig{Conn: "2", Routes: map[string]types.Route{"volt": route(2), "amp": route(3)}},
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 2)
	test.That(t, reg.Names(), test.ShouldResemble, []string{"J1", "J2"})

	s, err := reg.Lookup("J1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Header, test.ShouldEqual, "J")
	test.That(t, s.Kinds(), test.ShouldResemble, []types.Kind{types.KindPower, types.KindVolt, types.KindAmp})
	test.That(t, s.Info().Template, test.ShouldEqual, "rail")

	c, ok := s.Capability(types.KindPower)
	test.That(t, ok, test.ShouldBeTrue)
	res, err := c.Measure(context.Background(), s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Volt, test.ShouldEqual, 12.0)
	test.That(t, res.Amp, test.ShouldEqual, 2.5)
	test.That(t, res.Power, test.ShouldEqual, 30.0)
}

func TestAddConnectorsUnknownTemplate(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	_, err := reg.AddConnectors("J", "missing", types.SensorConfig{Conn: "1"})
	test.That(t, errors.Is(err, types.ErrConfig), test.ShouldBeTrue)
	test.That(t, reg.Names(), test.ShouldBeEmpty)
}

func TestDuplicateConnectorKeepsFirst(t *testing.T) {
	reg, _ := newTestRegistry(t, map[int]float64{0: 0.25, 1: 0.75})

	_, err := reg.AddSensors("J", types.SensorConfig{
		Conn:     "1",
		Routes:   map[string]types.Route{"reading": route(0)},
		Bindings: types.Bindings{Reading: linear(1)},
	})
	test.That(t, err, test.ShouldBeNil)

	_, err = reg.AddSensors("J", types.SensorConfig{
		Conn:     "1",
		Routes:   map[string]types.Route{"reading": route(1)},
		Bindings: types.Bindings{Reading: linear(1)},
	})
	test.That(t, errors.Is(err, types.ErrConfig), test.ShouldBeTrue)
	test.That(t, reg.Names(), test.ShouldResemble, []string{"J1"})

	s, err := reg.Lookup("J1")
	test.That(t, err, test.ShouldBeNil)
	r, ok := s.Route(types.KindReading)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, r.Channel.Mux, test.ShouldEqual, 0)
}

func TestDuplicateSensorName(t *testing.T) {
	reg, _ := newTestRegistry(t, map[int]float64{0: 0.5})

	vcc := func(conn string, mux int) types.SensorConfig {
		return types.SensorConfig{
			Conn:     conn,
			Name:     "Vcc",
			Routes:   map[string]types.Route{"volt": route(mux)},
			Bindings: types.Bindings{Volt: linear(10)},
		}
	}

	_, err := reg.AddSensors("J", vcc("1", 0))
	test.That(t, err, test.ShouldBeNil)

	_, err = reg.AddSensors("J", vcc("2", 1))
	test.That(t, errors.Is(err, types.ErrConfig), test.ShouldBeTrue)

	s, err := reg.Lookup("Vcc")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Conn, test.ShouldEqual, "J1")

	_, err = reg.Lookup("J2")
	test.That(t, errors.Is(err, types.ErrNotFound), test.ShouldBeTrue)
}

func TestSensorNameSharesIndexWithConnectors(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	_, err := reg.AddConnectors("J", "", types.SensorConfig{Conn: "1"})
	test.That(t, err, test.ShouldBeNil)

	_, err = reg.AddConnectors("T", "", types.SensorConfig{Conn: "1", Name: "J1"})
	test.That(t, errors.Is(err, types.ErrConfig), test.ShouldBeTrue)
	test.That(t, reg.Names(), test.ShouldResemble, []string{"J1"})
}

func TestDeclareSensors(t *testing.T) {
	reg, _ := newTestRegistry(t, map[int]float64{4: 0.25})

	_, err := reg.AddConnectors("T", "", types.SensorConfig{
		Conn:   "1",
		Routes: map[string]types.Route{"temp": route(4)},
	})
	test.That(t, err, test.ShouldBeNil)

	_, err = reg.DeclareSensors(types.SensorConfig{
		Conn:     "T1",
		Name:     "inlet",
		Bindings: types.Bindings{Temp: linear(400)},
	})
	test.That(t, err, test.ShouldBeNil)

	s, err := reg.Lookup("inlet")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Conn, test.ShouldEqual, "T1")
	test.That(t, s.Name, test.ShouldEqual, "inlet")

	c, ok := s.Capability(types.KindTemp)
	test.That(t, ok, test.ShouldBeTrue)
	res, err := c.Measure(context.Background(), s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Temp, test.ShouldEqual, 100.0)

	t.Run("already declared", func(t *testing.T) {
		_, err := reg.DeclareSensors(types.SensorConfig{Conn: "T1", Name: "outlet"})
		test.That(t, errors.Is(err, types.ErrConfig), test.ShouldBeTrue)
		_, err = reg.Lookup("outlet")
		test.That(t, errors.Is(err, types.ErrNotFound), test.ShouldBeTrue)
	})

	t.Run("unknown connector", func(t *testing.T) {
		_, err := reg.DeclareSensors(types.SensorConfig{Conn: "T9", Name: "ghost"})
		test.That(t, errors.Is(err, types.ErrConfig), test.ShouldBeTrue)
	})

	t.Run("by sensor name", func(t *testing.T) {
		_, err := reg.DeclareSensors(types.SensorConfig{Conn: "inlet", Name: "other"})
		test.That(t, errors.Is(err, types.ErrConfig), test.ShouldBeTrue)
	})
}

func TestDeclareFailureLeavesConnector(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	_, err := reg.AddConnectors("T", "", types.SensorConfig{Conn: "1"})
	test.That(t, err, test.ShouldBeNil)

	// no temp route on T1
	_, err = reg.DeclareSensors(types.SensorConfig{
		Conn:     "T1",
		Name:     "inlet",
		Bindings: types.Bindings{Temp: linear(1)},
	})
	test.That(t, errors.Is(err, types.ErrConfig), test.ShouldBeTrue)

	s, err := reg.Lookup("T1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Name, test.ShouldBeEmpty)
	test.That(t, s.Kinds(), test.ShouldBeEmpty)
}

func TestRegistrationRejectsBadItems(t *testing.T) {
	for _, tc := range []struct {
		name string
		item types.SensorConfig
	}{
		{"missing conn", types.SensorConfig{}},
		{"unknown type", types.SensorConfig{
			Conn:     "1",
			Routes:   map[string]types.Route{"volt": route(0)},
			Bindings: types.Bindings{Volt: &types.BindingConfig{Type: "bogus"}},
		}},
		{"no route", types.SensorConfig{
			Conn:     "1",
			Bindings: types.Bindings{Volt: linear(1)},
		}},
		{"unknown chip", types.SensorConfig{
			Conn:     "1",
			Routes:   map[string]types.Route{"volt": {Chip: "adc9"}},
			Bindings: types.Bindings{Volt: linear(1)},
		}},
		{"power route", types.SensorConfig{
			Conn:   "1",
			Routes: map[string]types.Route{"power": route(0)},
		}},
		{"power without amp", types.SensorConfig{
			Conn:     "1",
			Routes:   map[string]types.Route{"volt": route(0)},
			Bindings: types.Bindings{Power: &types.BindingConfig{Type: PowerProduct}, Volt: linear(1)},
		}},
		{"power type", types.SensorConfig{
			Conn:     "1",
			Bindings: types.Bindings{Power: &types.BindingConfig{Type: "5v"}},
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			reg, _ := newTestRegistry(t, nil)
			_, err := reg.AddSensors("J", tc.item)
			test.That(t, errors.Is(err, types.ErrConfig), test.ShouldBeTrue)
			test.That(t, reg.Names(), test.ShouldBeEmpty)
		})
	}
}

func TestRouteBankAndFunc(t *testing.T) {
	reg, _ := newTestRegistry(t, map[int]float64{3: 0.5})
	bank := 2

	_, err := reg.AddSensors("J", types.SensorConfig{
		Conn:   "7",
		Bank:   &bank,
		Routes: map[string]types.Route{"reading": route(3)},
		Bindings: types.Bindings{Reading: &types.BindingConfig{
			Func: func(r float64) (float64, error) { return r * 4, nil },
		}},
	})
	test.That(t, err, test.ShouldBeNil)

	s, err := reg.Lookup("J7")
	test.That(t, err, test.ShouldBeNil)
	r, ok := s.Route(types.KindReading)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, r.Channel, test.ShouldResemble, adc.Channel{Mux: 3, Bank: 2})

	c, _ := s.Capability(types.KindReading)
	res, err := c.Measure(context.Background(), s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Reading, test.ShouldEqual, 2.0)
}

type bankConverter struct {
	converted []adc.Channel
}

func (b *bankConverter) Convert(_ context.Context, ch adc.Channel) (float64, error) {
	b.converted = append(b.converted, ch)
	return 0.1 * float64(ch.Bank+1), nil
}

func TestTemplateRouteTakesConnectorBank(t *testing.T) {
	conv := &bankConverter{}
	chip, err := adc.NewSampler("adc0", conv, adc.SamplerConfig{}, nil)
	test.That(t, err, test.ShouldBeNil)
	reg := NewRegistry(nil, nil)
	test.That(t, reg.AddChip("adc0", chip), test.ShouldBeNil)

	fixed := 3
	err = reg.AddTemplate(types.TemplateConfig{
		Name: "banked",
		Bindings: types.Bindings{
			Volt: &types.BindingConfig{Type: "linear", Params: transfer.Params{"scale": 10.0}, Route: &types.Route{Chip: "adc0", Mux: 0}},
			Temp: &types.BindingConfig{Type: "raw", Route: &types.Route{Chip: "adc0", Mux: 1, Bank: &fixed}},
		},
	})
	test.That(t, err, test.ShouldBeNil)

	bank0, bank1 := 0, 1
	_, err = reg.AddConnectors("J", "banked",
		types.SensorConfig{Conn: "1", Bank: &bank0},
		types.SensorConfig{Conn: "2", Bank: &bank1},
		types.SensorConfig{Conn: "3"},
	)
	test.That(t, err, test.ShouldBeNil)

	volts := make([]float64, 0, 3)
	for _, name := range []string{"J1", "J2", "J3"} {
		s, err := reg.Lookup(name)
		test.That(t, err, test.ShouldBeNil)
		c, _ := s.Capability(types.KindVolt)
		res, err := c.Measure(context.Background(), s)
		test.That(t, err, test.ShouldBeNil)
		volts = append(volts, res.Volt)
	}
	test.That(t, volts[0], test.ShouldAlmostEqual, 1.0)
	test.That(t, volts[1], test.ShouldAlmostEqual, 2.0)
	test.That(t, volts[2], test.ShouldAlmostEqual, 0.0)
	test.That(t, conv.converted, test.ShouldResemble, []adc.Channel{
		{Mux: 0, Bank: 0},
		{Mux: 0, Bank: 1},
		{Mux: 0, Bank: adc.NoBank},
	})

	// a bank on the template route itself is kept
	s, _ := reg.Lookup("J2")
	r, ok := s.Route(types.KindTemp)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, r.Channel, test.ShouldResemble, adc.Channel{Mux: 1, Bank: 3})

	// every distinct input is tracked for refresh
	test.That(t, len(chip.Channels()), test.ShouldEqual, 4)
}

func TestBind(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)
	_, err := reg.AddConnectors("J", "", types.SensorConfig{Conn: "1"})
	test.That(t, err, test.ShouldBeNil)

	err = reg.Bind("J1", types.KindReading, CapabilityFunc(func(context.Context, *Sensor) (types.Result, error) {
		return types.NaNResult().With(types.KindReading, 7), nil
	}))
	test.That(t, err, test.ShouldBeNil)

	s, _ := reg.Lookup("J1")
	test.That(t, s.Kinds(), test.ShouldResemble, []types.Kind{types.KindReading})

	err = reg.Bind("J9", types.KindReading, Product{})
	test.That(t, errors.Is(err, types.ErrNotFound), test.ShouldBeTrue)
}

func TestUpdateListTracksRoutedChips(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)
	idle, err := adc.NewSampler("adc1", &muxConverter{}, adc.SamplerConfig{}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reg.AddChip("adc1", idle), test.ShouldBeNil)
	test.That(t, errors.Is(reg.AddChip("adc1", idle), types.ErrConfig), test.ShouldBeTrue)

	test.That(t, reg.UpdateList(), test.ShouldBeEmpty)

	_, err = reg.AddSensors("J", types.SensorConfig{
		Conn:     "1",
		Routes:   map[string]types.Route{"volt": route(0), "amp": route(1)},
		Bindings: types.Bindings{Volt: linear(1), Amp: linear(1)},
	})
	test.That(t, err, test.ShouldBeNil)

	list := reg.UpdateList()
	test.That(t, len(list), test.ShouldEqual, 1)
	test.That(t, list[0].Name(), test.ShouldEqual, "adc0")

	chip, _ := reg.Chip("adc0")
	test.That(t, len(chip.Channels()), test.ShouldEqual, 2)
}
