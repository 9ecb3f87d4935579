package devices

import (
	"context"
	"fmt"

	"github.com/KevinKickass/PowerInsight/internal/adc"
	"github.com/KevinKickass/PowerInsight/internal/transfer"
	"github.com/KevinKickass/PowerInsight/internal/types"
)

// PowerProduct is the power type computing watts from the volt and amp
// capabilities of the same sensor.
const PowerProduct = "product"

// Capability produces a measurement for the sensor it is invoked on.
// Fields it does not produce are NaN.
type Capability interface {
	Measure(ctx context.Context, s *Sensor) (types.Result, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, s *Sensor) (types.Result, error)

func (f CapabilityFunc) Measure(ctx context.Context, s *Sensor) (types.Result, error) {
	return f(ctx, s)
}

// Route is a resolved chip input.
type Route struct {
	Chip    string
	Source  adc.Chip
	Channel adc.Channel

	banked bool
}

// Scalar reads the sensor's route for Kind and applies Convert.
type Scalar struct {
	Kind    types.Kind
	Type    string
	Convert transfer.Func
}

func (c Scalar) Measure(ctx context.Context, s *Sensor) (types.Result, error) {
	result := types.NaNResult()

	route, ok := s.Route(c.Kind)
	if !ok {
		return result, fmt.Errorf("%s: no route for %s", s.Conn, c.Kind)
	}
	raw, err := route.Source.Raw(ctx, route.Channel)
	if err != nil {
		return result, fmt.Errorf("%s %s on %s: %w", s.Conn, c.Kind, route.Chip, err)
	}
	v, err := c.Convert(raw)
	if err != nil {
		return result, fmt.Errorf("%s %s: %w", s.Conn, c.Kind, err)
	}
	return result.With(c.Kind, v), nil
}

// Product reports watts as volt times amp along with both components.
type Product struct{}

func (Product) Measure(ctx context.Context, s *Sensor) (types.Result, error) {
	result := types.NaNResult()

	volt, err := s.measureOne(ctx, types.KindVolt)
	if err != nil {
		return result, err
	}
	amp, err := s.measureOne(ctx, types.KindAmp)
	if err != nil {
		return result, err
	}

	result.Power = volt * amp
	result.Volt = volt
	result.Amp = amp
	return result, nil
}
