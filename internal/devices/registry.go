package devices

import (
	"context"
	"fmt"
	"math"

	"github.com/KevinKickass/PowerInsight/internal/adc"
	"github.com/KevinKickass/PowerInsight/internal/transfer"
	"github.com/KevinKickass/PowerInsight/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Template is a set of default capabilities shared by reference among the
// connectors that name it.
type Template struct {
	Name   string
	caps   map[types.Kind]Capability
	routes map[types.Kind]Route
}

// Sensor is one registered connector together with the sensor attached to it.
type Sensor struct {
	ID     uuid.UUID
	Index  int
	Conn   string
	Name   string
	Header string

	template *Template
	bank     *int
	caps     map[types.Kind]Capability
	routes   map[types.Kind]Route
}

// Capability returns the sensor's own binding for k, falling back to its
// template.
func (s *Sensor) Capability(k types.Kind) (Capability, bool) {
	if c, ok := s.caps[k]; ok {
		return c, true
	}
	if s.template != nil {
		c, ok := s.template.caps[k]
		return c, ok
	}
	return nil, false
}

// Route returns the chip input for k, falling back to the template's route.
// A template route without its own bank takes the connector's bank.
func (s *Sensor) Route(k types.Kind) (Route, bool) {
	if r, ok := s.routes[k]; ok {
		return r, true
	}
	if s.template == nil {
		return Route{}, false
	}
	r, ok := s.template.routes[k]
	if ok && !r.banked && s.bank != nil {
		r.Channel.Bank = *s.bank
	}
	return r, ok
}

// Kinds lists the capabilities present, in canonical order.
func (s *Sensor) Kinds() []types.Kind {
	var out []types.Kind
	for _, k := range types.Kinds {
		if _, ok := s.Capability(k); ok {
			out = append(out, k)
		}
	}
	return out
}

func (s *Sensor) Info() types.ConnectorInfo {
	info := types.ConnectorInfo{
		ID:     s.ID,
		Index:  s.Index,
		Conn:   s.Conn,
		Name:   s.Name,
		Header: s.Header,
		Kinds:  s.Kinds(),
	}
	if s.template != nil {
		info.Template = s.template.Name
	}
	return info
}

func (s *Sensor) measureOne(ctx context.Context, k types.Kind) (float64, error) {
	c, ok := s.Capability(k)
	if !ok {
		return math.NaN(), fmt.Errorf("%s: no %s capability", s.Conn, k)
	}
	res, err := c.Measure(ctx, s)
	if err != nil {
		return math.NaN(), err
	}
	return res.Get(k), nil
}

// Registry owns the Name Index, the ordered sensor list and the chips the
// sensors are routed to. It is populated during configuration and is not
// safe for concurrent mutation.
type Registry struct {
	types     *transfer.Types
	chips     map[string]adc.Chip
	chipOrder []string
	templates map[string]*Template
	sensors   []*Sensor
	byName    map[string]int
	logger    *zap.Logger
}

func NewRegistry(tt *transfer.Types, logger *zap.Logger) *Registry {
	if tt == nil {
		tt = transfer.NewTypes(transfer.PolicyError)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		types:     tt,
		chips:     make(map[string]adc.Chip),
		templates: make(map[string]*Template),
		byName:    make(map[string]int),
		logger:    logger,
	}
}

// Types returns the transfer type registry used to resolve bindings.
func (r *Registry) Types() *transfer.Types {
	return r.types
}

// AddChip makes a chip available to routes.
func (r *Registry) AddChip(name string, chip adc.Chip) error {
	if name == "" || chip == nil {
		return fmt.Errorf("%w: chip needs a name", types.ErrConfig)
	}
	if _, exists := r.chips[name]; exists {
		return fmt.Errorf("%w: duplicate chip name %q", types.ErrConfig, name)
	}
	r.chips[name] = chip
	r.chipOrder = append(r.chipOrder, name)
	return nil
}

// Chip returns the named chip.
func (r *Registry) Chip(name string) (adc.Chip, bool) {
	chip, ok := r.chips[name]
	return chip, ok
}

// UpdateList returns, in registration order, every chip with at least one
// routed channel.
func (r *Registry) UpdateList() []adc.Updater {
	var out []adc.Updater
	for _, name := range r.chipOrder {
		chip := r.chips[name]
		if len(chip.Channels()) > 0 {
			out = append(out, chip)
		}
	}
	return out
}

// AddTemplate registers a shared capability template.
func (r *Registry) AddTemplate(cfg types.TemplateConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: template needs a name", types.ErrConfig)
	}
	if _, exists := r.templates[cfg.Name]; exists {
		return fmt.Errorf("%w: duplicate template %q", types.ErrConfig, cfg.Name)
	}

	t := &Template{
		Name:   cfg.Name,
		caps:   make(map[types.Kind]Capability),
		routes: make(map[types.Kind]Route),
	}
	for _, k := range types.Kinds {
		b := cfg.Get(k)
		if b == nil {
			continue
		}
		c, err := r.resolve(k, b)
		if err != nil {
			return fmt.Errorf("template %s: %w", cfg.Name, err)
		}
		t.caps[k] = c
		if b.Route != nil {
			route, err := r.resolveRoute(*b.Route, nil)
			if err != nil {
				return fmt.Errorf("template %s %s: %w", cfg.Name, k, err)
			}
			t.routes[k] = route
		}
	}

	r.templates[cfg.Name] = t
	return nil
}

// AddConnectors registers items under prefix, each sharing the named
// template (empty for none).
func (r *Registry) AddConnectors(prefix, template string, items ...types.SensorConfig) (int, error) {
	var tmpl *Template
	if template != "" {
		t, ok := r.templates[template]
		if !ok {
			return 0, fmt.Errorf("%w: unknown template %q", types.ErrConfig, template)
		}
		tmpl = t
	}
	return r.add("addConnectors", prefix, tmpl, items)
}

// AddSensors registers complete connector and sensor items under prefix.
func (r *Registry) AddSensors(prefix string, items ...types.SensorConfig) (int, error) {
	return r.add("addSensors", prefix, nil, items)
}

func (r *Registry) add(op, prefix string, tmpl *Template, items []types.SensorConfig) (int, error) {
	for i := range items {
		item := &items[i]
		if err := item.Validate(); err != nil {
			return i, fmt.Errorf("%s item %d: %w", op, i+1, err)
		}

		conn := prefix + item.Conn
		r.logger.Debug("Processing connector", zap.String("op", op), zap.String("conn", conn))

		if _, exists := r.byName[conn]; exists {
			return i, fmt.Errorf("%s item %d: %w: duplicate connector name %s", op, i+1, types.ErrConfig, conn)
		}
		if err := r.checkName(item.Name, conn); err != nil {
			return i, fmt.Errorf("%s item %d: %w", op, i+1, err)
		}

		s := &Sensor{
			ID:       uuid.New(),
			Conn:     conn,
			Name:     item.Name,
			Header:   prefix,
			template: tmpl,
			bank:     item.Bank,
			caps:     make(map[types.Kind]Capability),
			routes:   make(map[types.Kind]Route),
		}
		if err := r.bind(s, item, true); err != nil {
			return i, fmt.Errorf("%s %s: %w", op, conn, err)
		}
		if err := r.check(s); err != nil {
			return i, fmt.Errorf("%s %s: %w", op, conn, err)
		}

		r.commit(s)
	}
	return len(items), nil
}

// DeclareSensors attaches sensors to connectors that are already registered.
// Each item's conn is the full connector name. A connector takes at most one
// declaration.
func (r *Registry) DeclareSensors(items ...types.SensorConfig) (int, error) {
	for i := range items {
		item := &items[i]
		if err := item.Validate(); err != nil {
			return i, fmt.Errorf("sensors item %d: %w", i+1, err)
		}
		r.logger.Debug("Processing sensor", zap.String("conn", item.Conn))

		idx, ok := r.byName[item.Conn]
		if !ok || r.sensors[idx].Conn != item.Conn {
			return i, fmt.Errorf("sensors item %d: %w: connector %q not found", i+1, types.ErrConfig, item.Conn)
		}
		s := r.sensors[idx]
		if s.Name != "" {
			return i, fmt.Errorf("sensors item %d: %w: connector %s already declared as %q", i+1, types.ErrConfig, s.Conn, s.Name)
		}
		if err := r.checkName(item.Name, ""); err != nil {
			return i, fmt.Errorf("sensors item %d: %w", i+1, err)
		}
		if len(item.Routes) > 0 || item.Bank != nil {
			r.logger.Warn("Sensor declaration cannot change routing, ignored",
				zap.String("conn", s.Conn))
		}

		// Work on a copy so a failed declaration leaves the connector as it was
		next := *s
		next.caps = make(map[types.Kind]Capability, len(s.caps))
		for k, c := range s.caps {
			next.caps[k] = c
		}
		if err := r.bind(&next, item, false); err != nil {
			return i, fmt.Errorf("sensors %s: %w", s.Conn, err)
		}
		if err := r.check(&next); err != nil {
			return i, fmt.Errorf("sensors %s: %w", s.Conn, err)
		}

		next.Name = item.Name
		*s = next
		if s.Name != "" {
			r.byName[s.Name] = s.Index
		}
	}
	return len(items), nil
}

// Bind attaches a capability built in code to a registered name.
func (r *Registry) Bind(name string, k types.Kind, c Capability) error {
	s, err := r.Lookup(name)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: nil capability for %s", types.ErrConfig, name)
	}
	s.caps[k] = c
	return nil
}

func (r *Registry) checkName(name, conn string) error {
	if name == "" {
		return nil
	}
	if name == conn {
		return fmt.Errorf("%w: name %q repeats its connector", types.ErrConfig, name)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: name %q already used", types.ErrConfig, name)
	}
	return nil
}

// bind resolves the item's bindings, and its routes when routing is allowed,
// into s.
func (r *Registry) bind(s *Sensor, item *types.SensorConfig, routing bool) error {
	if routing {
		for key, rt := range item.Routes {
			k, _ := types.ParseKind(key)
			route, err := r.resolveRoute(rt, item.Bank)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			s.routes[k] = route
		}
	}

	for _, k := range types.Kinds {
		b := item.Get(k)
		if b == nil {
			continue
		}
		c, err := r.resolve(k, b)
		if err != nil {
			return err
		}
		s.caps[k] = c
		if b.Route != nil {
			if !routing {
				r.logger.Warn("Sensor declaration cannot change routing, ignored",
					zap.String("conn", s.Conn),
					zap.String("capability", k.String()))
				continue
			}
			route, err := r.resolveRoute(*b.Route, item.Bank)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			s.routes[k] = route
		}
	}
	return nil
}

// check verifies every capability can be measured.
func (r *Registry) check(s *Sensor) error {
	for _, k := range types.Kinds {
		c, ok := s.Capability(k)
		if !ok {
			continue
		}
		switch c.(type) {
		case Scalar:
			if _, ok := s.Route(k); !ok {
				return fmt.Errorf("%w: %s has no route", types.ErrConfig, k)
			}
		case Product:
			for _, need := range []types.Kind{types.KindVolt, types.KindAmp} {
				if _, ok := s.Capability(need); !ok {
					return fmt.Errorf("%w: power %s needs a %s capability", types.ErrConfig, PowerProduct, need)
				}
			}
		}
	}
	return nil
}

func (r *Registry) commit(s *Sensor) {
	s.Index = len(r.sensors)
	r.sensors = append(r.sensors, s)
	r.byName[s.Conn] = s.Index
	if s.Name != "" {
		r.byName[s.Name] = s.Index
	}
	for _, k := range types.Kinds {
		if route, ok := s.Route(k); ok {
			route.Source.Track(route.Channel)
		}
	}
}

func (r *Registry) resolve(k types.Kind, b *types.BindingConfig) (Capability, error) {
	if k == types.KindPower {
		if b.Type != PowerProduct {
			return nil, fmt.Errorf("%w: power has unrecognized type %q", types.ErrConfig, b.Type)
		}
		return Product{}, nil
	}

	if b.Func != nil {
		return Scalar{Kind: k, Convert: b.Func}, nil
	}
	fn, err := r.types.Resolve(b.Type, b.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrConfig, k, err)
	}
	return Scalar{Kind: k, Type: b.Type, Convert: fn}, nil
}

func (r *Registry) resolveRoute(rt types.Route, bank *int) (Route, error) {
	chip, ok := r.chips[rt.Chip]
	if !ok {
		return Route{}, fmt.Errorf("%w: unknown chip %q", types.ErrConfig, rt.Chip)
	}
	route := Route{Chip: rt.Chip, Source: chip, Channel: adc.Mux(rt.Mux)}
	switch {
	case rt.Bank != nil:
		route.Channel.Bank = *rt.Bank
		route.banked = true
	case bank != nil:
		route.Channel.Bank = *bank
	}
	return route, nil
}

// Lookup resolves a connector or sensor name.
func (r *Registry) Lookup(name string) (*Sensor, error) {
	idx, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrNotFound, name)
	}
	return r.sensors[idx], nil
}

// Sensors returns the registered sensors in registration order.
func (r *Registry) Sensors() []*Sensor {
	out := make([]*Sensor, len(r.sensors))
	copy(out, r.sensors)
	return out
}

// Names returns the connector names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.sensors))
	for i, s := range r.sensors {
		names[i] = s.Conn
	}
	return names
}
