package types

import (
	"fmt"
	"math"
	"strings"
)

// Kind is a measurement capability.
type Kind int

const (
	KindPower Kind = iota
	KindVolt
	KindAmp
	KindTemp
	KindReading
)

// Kinds lists every capability in the default dispatch priority.
var Kinds = []Kind{KindPower, KindVolt, KindAmp, KindTemp, KindReading}

func (k Kind) String() string {
	switch k {
	case KindPower:
		return "power"
	case KindVolt:
		return "volt"
	case KindAmp:
		return "amp"
	case KindTemp:
		return "temp"
	case KindReading:
		return "reading"
	default:
		return "unknown"
	}
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", s)
}

// ParsePriority parses an ordered capability list. Every kind may appear at
// most once.
func ParsePriority(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return append([]Kind(nil), Kinds...), nil
	}
	seen := make(map[Kind]bool, len(names))
	out := make([]Kind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			return nil, fmt.Errorf("capability %q listed twice", n)
		}
		seen[k] = true
		out = append(out, k)
	}
	return out, nil
}

// Result is one reading. Fields the capability did not produce are NaN.
// Kind is the capability that produced it.
type Result struct {
	Kind    Kind
	Power   float64
	Volt    float64
	Amp     float64
	Temp    float64
	Reading float64
}

// NaNResult returns a Result with every field NaN.
func NaNResult() Result {
	nan := math.NaN()
	return Result{Power: nan, Volt: nan, Amp: nan, Temp: nan, Reading: nan}
}

// Get returns the field for k.
func (r Result) Get(k Kind) float64 {
	switch k {
	case KindPower:
		return r.Power
	case KindVolt:
		return r.Volt
	case KindAmp:
		return r.Amp
	case KindTemp:
		return r.Temp
	case KindReading:
		return r.Reading
	}
	return math.NaN()
}

// With returns r with the field for k set to v.
func (r Result) With(k Kind, v float64) Result {
	switch k {
	case KindPower:
		r.Power = v
	case KindVolt:
		r.Volt = v
	case KindAmp:
		r.Amp = v
	case KindTemp:
		r.Temp = v
	case KindReading:
		r.Reading = v
	}
	return r
}
