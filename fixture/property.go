// Package fixture models lighting fixtures as a set of explicit, typed
// properties bound to DMX channels, following capability traits rather than
// runtime reflection.
package fixture

import (
	"errors"
	"fmt"
	"sort"

	"github.com/robmorgan/halofx/dmx"
)

// ErrNoTransactionBound is returned when a property is read or written
// before withTransaction has been applied. It is a programmer error, not a
// recoverable runtime condition.
var ErrNoTransactionBound = errors.New("fixture: property has no transaction bound")

// Transaction is the subset of transaction.ControllerTransaction a property
// needs to read and stage writes. Defined here (rather than importing the
// transaction package) so fixture has no dependency on it; any type with
// this method set, including *transaction.ControllerTransaction, satisfies it.
type Transaction interface {
	SetValue(u dmx.Universe, channel int, value byte) error
	SetValueFaded(u dmx.Universe, channel int, value byte, fadeMs int) error
	GetValue(u dmx.Universe, channel int) (byte, error)
}

// Binding attaches a property to a single DMX channel, with the byte range
// the hardware accepts.
type Binding struct {
	Universe dmx.Universe
	Channel  int
	Min      byte
	Max      byte
}

// NewBinding returns a binding with the full [0,255] range.
func NewBinding(u dmx.Universe, channel int) Binding {
	return Binding{Universe: u, Channel: channel, Min: 0, Max: 255}
}

// NewRangedBinding returns a binding clamped to [min,max].
func NewRangedBinding(u dmx.Universe, channel int, min, max byte) Binding {
	return Binding{Universe: u, Channel: channel, Min: min, Max: max}
}

func (b Binding) clamp(v byte) byte {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Slider is a single bounded byte-valued property, e.g. a dimmer or a raw
// UV channel.
type Slider struct {
	binding Binding
	tx      Transaction
}

// NewSlider returns a Slider with no transaction bound; Read/Write/FadeTo
// fail with ErrNoTransactionBound until WithTransaction is called.
func NewSlider(b Binding) *Slider {
	return &Slider{binding: b}
}

// WithTransaction returns a new Slider with the same binding pointed at tx.
func (s *Slider) WithTransaction(tx Transaction) *Slider {
	return &Slider{binding: s.binding, tx: tx}
}

// Read returns the channel's current-or-pending byte.
func (s *Slider) Read() (byte, error) {
	if s.tx == nil {
		return 0, ErrNoTransactionBound
	}
	return s.tx.GetValue(s.binding.Universe, s.binding.Channel)
}

// Write stages an immediate clamped set.
func (s *Slider) Write(value byte) error {
	if s.tx == nil {
		return ErrNoTransactionBound
	}
	return s.tx.SetValue(s.binding.Universe, s.binding.Channel, s.binding.clamp(value))
}

// FadeTo stages a clamped interpolated set over fadeMs milliseconds.
func (s *Slider) FadeTo(value byte, fadeMs int) error {
	if s.tx == nil {
		return ErrNoTransactionBound
	}
	return s.tx.SetValueFaded(s.binding.Universe, s.binding.Channel, s.binding.clamp(value), fadeMs)
}

// Binding returns the slider's channel binding.
func (s *Slider) Binding() Binding {
	return s.binding
}

// RGB is a byte-triple colour value.
type RGB struct {
	R, G, B byte
}

// Colour is an RGB property backed by three independent Slider channels.
type Colour struct {
	Red, Green, Blue *Slider
}

// NewColour builds a Colour property from three channel bindings.
func NewColour(red, green, blue Binding) *Colour {
	return &Colour{
		Red:   NewSlider(red),
		Green: NewSlider(green),
		Blue:  NewSlider(blue),
	}
}

// WithTransaction returns a new Colour with each channel pointed at tx.
func (c *Colour) WithTransaction(tx Transaction) *Colour {
	return &Colour{
		Red:   c.Red.WithTransaction(tx),
		Green: c.Green.WithTransaction(tx),
		Blue:  c.Blue.WithTransaction(tx),
	}
}

// Read returns the current-or-pending RGB triple.
func (c *Colour) Read() (RGB, error) {
	r, err := c.Red.Read()
	if err != nil {
		return RGB{}, err
	}
	g, err := c.Green.Read()
	if err != nil {
		return RGB{}, err
	}
	b, err := c.Blue.Read()
	if err != nil {
		return RGB{}, err
	}
	return RGB{R: r, G: g, B: b}, nil
}

// Write stages an immediate set of all three channels.
func (c *Colour) Write(v RGB) error {
	if err := c.Red.Write(v.R); err != nil {
		return err
	}
	if err := c.Green.Write(v.G); err != nil {
		return err
	}
	return c.Blue.Write(v.B)
}

// FadeTo stages an interpolated set of all three channels over fadeMs.
func (c *Colour) FadeTo(v RGB, fadeMs int) error {
	if err := c.Red.FadeTo(v.R, fadeMs); err != nil {
		return err
	}
	if err := c.Green.FadeTo(v.G, fadeMs); err != nil {
		return err
	}
	return c.Blue.FadeTo(v.B, fadeMs)
}

// Position is a pan/tilt property backed by two Slider channels.
type Position struct {
	Pan, Tilt *Slider
}

// NewPosition builds a Position property from pan and tilt bindings.
func NewPosition(pan, tilt Binding) *Position {
	return &Position{Pan: NewSlider(pan), Tilt: NewSlider(tilt)}
}

// WithTransaction returns a new Position with pan/tilt pointed at tx.
func (p *Position) WithTransaction(tx Transaction) *Position {
	return &Position{Pan: p.Pan.WithTransaction(tx), Tilt: p.Tilt.WithTransaction(tx)}
}

// PanTilt is a pan/tilt byte pair.
type PanTilt struct {
	Pan, Tilt byte
}

// Read returns the current-or-pending pan/tilt pair.
func (p *Position) Read() (PanTilt, error) {
	pan, err := p.Pan.Read()
	if err != nil {
		return PanTilt{}, err
	}
	tilt, err := p.Tilt.Read()
	if err != nil {
		return PanTilt{}, err
	}
	return PanTilt{Pan: pan, Tilt: tilt}, nil
}

// Write stages an immediate set of pan and tilt.
func (p *Position) Write(v PanTilt) error {
	if err := p.Pan.Write(v.Pan); err != nil {
		return err
	}
	return p.Tilt.Write(v.Tilt)
}

// FadeTo stages an interpolated set of pan and tilt over fadeMs.
func (p *Position) FadeTo(v PanTilt, fadeMs int) error {
	if err := p.Pan.FadeTo(v.Pan, fadeMs); err != nil {
		return err
	}
	return p.Tilt.FadeTo(v.Tilt, fadeMs)
}

// SettingValue names one entry of a Setting's enumeration at a given
// control-channel level.
type SettingValue struct {
	Name  string
	Level byte
}

// Setting is an enumerated property: writing a named value writes its
// level to the bound channel.
type Setting struct {
	binding Binding
	tx      Transaction
	values  []SettingValue // sorted ascending by Level
}

// NewSetting builds a Setting from its enumeration, sorted by level. Names
// must be unique; duplicates are rejected.
func NewSetting(b Binding, values ...SettingValue) (*Setting, error) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v.Name]; dup {
			return nil, fmt.Errorf("fixture: duplicate setting name %q", v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	sorted := append([]SettingValue(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return &Setting{binding: b, values: sorted}, nil
}

// WithTransaction returns a new Setting with the same enumeration pointed at tx.
func (s *Setting) WithTransaction(tx Transaction) *Setting {
	return &Setting{binding: s.binding, tx: tx, values: s.values}
}

// Values returns the setting's enumeration, sorted ascending by level.
func (s *Setting) Values() []SettingValue {
	return append([]SettingValue(nil), s.values...)
}

// ValueForLevel returns the first enumerated value whose level is >= L, or
// the lowest-level value if none qualifies. Panics if the setting has no
// enumerated values, which is a construction-time programmer error.
func (s *Setting) ValueForLevel(level byte) SettingValue {
	if len(s.values) == 0 {
		panic("fixture: ValueForLevel called on a Setting with no enumerated values")
	}
	for _, v := range s.values {
		if v.Level >= level {
			return v
		}
	}
	return s.values[0]
}

// Set writes the named value's level to the bound channel immediately.
func (s *Setting) Set(name string) error {
	if s.tx == nil {
		return ErrNoTransactionBound
	}
	for _, v := range s.values {
		if v.Name == name {
			return s.tx.SetValue(s.binding.Universe, s.binding.Channel, v.Level)
		}
	}
	return fmt.Errorf("fixture: unknown setting value %q", name)
}

// Current reads the bound channel and resolves it to the enumerated value
// whose window it falls within.
func (s *Setting) Current() (SettingValue, error) {
	if s.tx == nil {
		return SettingValue{}, ErrNoTransactionBound
	}
	level, err := s.tx.GetValue(s.binding.Universe, s.binding.Channel)
	if err != nil {
		return SettingValue{}, err
	}
	return s.ValueForLevel(level), nil
}

// Strobe is a device-specific strobe-rate property: fullOn drives a
// continuous output, StrobeAt maps a normalized [0,255] intensity into the
// hardware's own strobe-rate window.
type Strobe struct {
	binding  Binding
	fullOn   byte
	offValue byte
	tx       Transaction
}

// NewStrobe builds a Strobe property. fullOn is the channel value meaning
// "solid on"; offValue is the channel value meaning "off"; StrobeAt maps
// its input linearly from offValue up to, but excluding, fullOn, i.e. the
// hardware's actual strobing window.
func NewStrobe(b Binding, offValue, fullOn byte) *Strobe {
	return &Strobe{binding: b, offValue: offValue, fullOn: fullOn}
}

// WithTransaction returns a new Strobe with the same mapping pointed at tx.
func (s *Strobe) WithTransaction(tx Transaction) *Strobe {
	return &Strobe{binding: s.binding, offValue: s.offValue, fullOn: s.fullOn, tx: tx}
}

// FullOn drives the channel to its continuous-on value.
func (s *Strobe) FullOn() error {
	if s.tx == nil {
		return ErrNoTransactionBound
	}
	return s.tx.SetValue(s.binding.Universe, s.binding.Channel, s.fullOn)
}

// Off drives the channel to its off value.
func (s *Strobe) Off() error {
	if s.tx == nil {
		return ErrNoTransactionBound
	}
	return s.tx.SetValue(s.binding.Universe, s.binding.Channel, s.offValue)
}

// StrobeAt maps intensity in [0,255] linearly into the strobe window
// between offValue and fullOn (exclusive of fullOn, which means solid-on
// rather than strobing on most fixtures) and writes it.
func (s *Strobe) StrobeAt(intensity byte) error {
	if s.tx == nil {
		return ErrNoTransactionBound
	}
	lo, hi := int(s.offValue), int(s.fullOn)
	mapped := lo + (int(intensity)*(hi-lo))/255
	if mapped == hi && hi > lo {
		mapped-- // reserve the endpoint for FullOn
	} else if mapped == hi && hi < lo {
		mapped++
	}
	return s.tx.SetValue(s.binding.Universe, s.binding.Channel, s.binding.clamp(byte(mapped)))
}
