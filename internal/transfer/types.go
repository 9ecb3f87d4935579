package transfer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrUnknownType is returned when a symbolic type name has no factory.
var ErrUnknownType = errors.New("unknown transfer type")

// Func converts one raw reading.
type Func func(reading float64) (float64, error)

// Params are the optional numeric arguments of a symbolic type.
type Params map[string]float64

// Get returns the named parameter or def.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Factory builds a Func from its parameters.
type Factory func(p Params) (Func, error)

// Policy decides what a range-limited conversion does with bad input.
type Policy int

const (
	PolicyError Policy = iota
	PolicyNaN
)

func (p Policy) String() string {
	switch p {
	case PolicyError:
		return "error"
	case PolicyNaN:
		return "nan"
	default:
		return "unknown"
	}
}

// ParsePolicy accepts "error" or "nan".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return PolicyError, nil
	case "nan":
		return PolicyNaN, nil
	default:
		return PolicyError, fmt.Errorf("invalid range policy %q (want error or nan)", s)
	}
}

// Apply converts an out of range failure to NaN under PolicyNaN.
func (p Policy) Apply(v float64, err error) (float64, error) {
	if err != nil && p == PolicyNaN && errors.Is(err, ErrOutOfRange) {
		return math.NaN(), nil
	}
	return v, err
}

// Types maps symbolic names to transfer functions.
type Types struct {
	policy    Policy
	factories map[string]Factory
}

// NewTypes returns a registry holding the built-in sensor types.
func NewTypes(policy Policy) *Types {
	t := &Types{
		policy:    policy,
		factories: make(map[string]Factory),
	}
	for name, f := range builtins {
		t.factories[name] = f
	}
	return t
}

// Policy returns the range policy applied to resolved functions.
func (t *Types) Policy() Policy {
	return t.policy
}

// Register adds a named factory. Names are unique.
func (t *Types) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("transfer type needs a name and a factory")
	}
	if _, exists := t.factories[name]; exists {
		return fmt.Errorf("transfer type %q already registered", name)
	}
	t.factories[name] = f
	return nil
}

// Has reports whether name is registered.
func (t *Types) Has(name string) bool {
	_, ok := t.factories[name]
	return ok
}

// Resolve builds the named function with the registry's range policy applied.
func (t *Types) Resolve(name string, p Params) (Func, error) {
	factory, ok := t.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	fn, err := factory(p)
	if err != nil {
		return nil, fmt.Errorf("transfer type %q: %w", name, err)
	}
	policy := t.policy
	return func(reading float64) (float64, error) {
		return policy.Apply(fn(reading))
	}, nil
}

// Names lists the registered types in sorted order.
func (t *Types) Names() []string {
	names := make([]string, 0, len(t.factories))
	for name := range t.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func divider(ratio float64) Factory {
	return func(p Params) (Func, error) {
		vref := p.Get("vref", DefaultVref)
		return func(r float64) (float64, error) { return Divider(r, vref, ratio), nil }, nil
	}
}

func hall(sensitivity float64) Factory {
	return func(Params) (Func, error) {
		return func(r float64) (float64, error) { return HallCurrent(r, sensitivity), nil }, nil
	}
}

func shunt(ohms float64) Factory {
	return func(p Params) (Func, error) {
		vcc := p.Get("vcc", DefaultVcc)
		return func(r float64) (float64, error) { return ShuntCurrent(r, vcc, ohms), nil }, nil
	}
}

var builtins = map[string]Factory{
	"5v":        divider(Ratio5V),
	"12v":       divider(Ratio12V),
	"3v3":       divider(Ratio3V3),
	"acs713_20": hall(ACS713x20),
	"acs713_30": hall(ACS713x30),
	"acs723_10": hall(ACS723x10),
	"acs723_20": hall(ACS723x20),
	"shunt10":   shunt(0.010),
	"shunt25":   shunt(0.025),
	"shunt50":   shunt(0.050),
	"K": func(p Params) (Func, error) {
		vref := p.Get("vref", 1.0)
		return func(r float64) (float64, error) { return VoltToTempK(r, vref) }, nil
	},
	"PTS": func(p Params) (Func, error) {
		pullup := p.Get("pullup", DefaultPullup)
		if pullup <= 0 {
			return nil, fmt.Errorf("pullup must be positive, got %g", pullup)
		}
		return func(r float64) (float64, error) { return RtToTempPTS(r, pullup) }, nil
	},
	"linear": func(p Params) (Func, error) {
		scale := p.Get("scale", 1.0)
		offset := p.Get("offset", 0.0)
		return func(r float64) (float64, error) { return Linear(r, scale, offset), nil }, nil
	},
	"raw": func(Params) (Func, error) {
		return func(r float64) (float64, error) { return r, nil }, nil
	},
}
