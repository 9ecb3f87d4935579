package types

import (
	"fmt"

	"github.com/KevinKickass/PowerInsight/internal/transfer"
	"gopkg.in/yaml.v3"
)

// HeaderConfig is a connector header. Connector names are Prefix plus each
// item's conn suffix.
type HeaderConfig struct {
	Prefix     string         `yaml:"prefix" json:"prefix"`
	Template   string         `yaml:"template,omitempty" json:"template,omitempty"`
	Connectors []SensorConfig `yaml:"connectors,omitempty" json:"connectors,omitempty"`
	Sensors    []SensorConfig `yaml:"sensors,omitempty" json:"sensors,omitempty"`
}

// TemplateConfig holds default bindings shared by every connector that
// references it.
type TemplateConfig struct {
	Name     string `yaml:"name" json:"name"`
	Bindings `yaml:",inline"`
}

// Route says which chip input carries a measurement.
type Route struct {
	Chip string `yaml:"chip" json:"chip"`
	Mux  int    `yaml:"mux" json:"mux"`
	Bank *int   `yaml:"bank,omitempty" json:"bank,omitempty"`
}

// BindingConfig binds one capability: either a symbolic transfer type or,
// when built in code, a conversion routine.
type BindingConfig struct {
	Type   string          `yaml:"type" json:"type"`
	Params transfer.Params `yaml:"params,omitempty" json:"params,omitempty"`
	Route  *Route          `yaml:"route,omitempty" json:"route,omitempty"`
	Func   transfer.Func   `yaml:"-" json:"-"`
}

// UnmarshalYAML accepts a bare type name as shorthand.
func (b *BindingConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		b.Type = value.Value
		return nil
	}
	type plain BindingConfig
	return value.Decode((*plain)(b))
}

// Bindings are the optional capability bindings, one per kind.
type Bindings struct {
	Power   *BindingConfig `yaml:"power,omitempty" json:"power,omitempty"`
	Volt    *BindingConfig `yaml:"volt,omitempty" json:"volt,omitempty"`
	Amp     *BindingConfig `yaml:"amp,omitempty" json:"amp,omitempty"`
	Temp    *BindingConfig `yaml:"temp,omitempty" json:"temp,omitempty"`
	Reading *BindingConfig `yaml:"reading,omitempty" json:"reading,omitempty"`
}

// Get returns the binding for k, or nil.
func (b *Bindings) Get(k Kind) *BindingConfig {
	switch k {
	case KindPower:
		return b.Power
	case KindVolt:
		return b.Volt
	case KindAmp:
		return b.Amp
	case KindTemp:
		return b.Temp
	case KindReading:
		return b.Reading
	}
	return nil
}

// Set replaces the binding for k.
func (b *Bindings) Set(k Kind, cfg *BindingConfig) {
	switch k {
	case KindPower:
		b.Power = cfg
	case KindVolt:
		b.Volt = cfg
	case KindAmp:
		b.Amp = cfg
	case KindTemp:
		b.Temp = cfg
	case KindReading:
		b.Reading = cfg
	}
}

// SensorConfig is one connector or sensor item of a header.
type SensorConfig struct {
	Conn     string           `yaml:"conn" json:"conn"`
	Name     string           `yaml:"name,omitempty" json:"name,omitempty"`
	Bank     *int             `yaml:"bank,omitempty" json:"bank,omitempty"`
	Routes   map[string]Route `yaml:"routes,omitempty" json:"routes,omitempty"`
	Bindings `yaml:",inline"`
}

// Route returns the item's route for k.
func (s *SensorConfig) Route(k Kind) (Route, bool) {
	r, ok := s.Routes[k.String()]
	return r, ok
}

// Validate checks the structural rules every item must meet.
func (s *SensorConfig) Validate() error {
	if s.Conn == "" {
		return fmt.Errorf("%w: missing 'conn' field", ErrConfig)
	}
	for key := range s.Routes {
		k, err := ParseKind(key)
		if err != nil {
			return fmt.Errorf("%w: route %q: %v", ErrConfig, key, err)
		}
		if k == KindPower {
			return fmt.Errorf("%w: power is derived and takes no route", ErrConfig)
		}
	}
	return nil
}
