// Package config builds patched Fixtures and Groups from declarative
// profile and patch data, and loads the process-wide runtime configuration.
package config

import (
	"fmt"

	"github.com/robmorgan/halofx/dmx"
	"github.com/robmorgan/halofx/fixture"
)

// ChannelSpec places one channel at a fixed offset from a fixture's patched
// base address, with the byte range the hardware accepts.
type ChannelSpec struct {
	Offset int  `yaml:"offset"`
	Min    byte `yaml:"min,omitempty"`
	Max    byte `yaml:"max,omitempty"`
}

func (c ChannelSpec) binding(u dmx.Universe, base int) fixture.Binding {
	if c.Min == 0 && c.Max == 0 {
		return fixture.NewBinding(u, base+c.Offset)
	}
	return fixture.NewRangedBinding(u, base+c.Offset, c.Min, c.Max)
}

// ColourSpec places an RGB triple at three channel offsets.
type ColourSpec struct {
	Red   ChannelSpec `yaml:"red"`
	Green ChannelSpec `yaml:"green"`
	Blue  ChannelSpec `yaml:"blue"`
}

// PositionSpec places a pan/tilt pair at two channel offsets.
type PositionSpec struct {
	Pan  ChannelSpec `yaml:"pan"`
	Tilt ChannelSpec `yaml:"tilt"`
}

// StrobeSpec places a strobe-rate channel, with the off/full-on endpoints
// of its hardware window.
type StrobeSpec struct {
	Channel  ChannelSpec `yaml:"channel"`
	OffValue byte        `yaml:"offValue"`
	FullOn   byte        `yaml:"fullOn"`
}

// SettingSpec places an enumerated control channel.
type SettingSpec struct {
	Channel ChannelSpec            `yaml:"channel"`
	Values  []fixture.SettingValue `yaml:"values"`
}

// FixtureProfile describes one fixture type's channel layout: which
// properties it exposes and where each lands relative to its patched base
// address. ElementCount > 0 describes a multi-element fixture (e.g. a pixel
// bar); each element repeats ElementColour at a stride of ElementStride
// channels starting at the fixture's base address.
type FixtureProfile struct {
	Name string `yaml:"name"`

	Dimmer   *ChannelSpec           `yaml:"dimmer,omitempty"`
	UV       *ChannelSpec           `yaml:"uv,omitempty"`
	Colour   *ColourSpec            `yaml:"colour,omitempty"`
	Position *PositionSpec          `yaml:"position,omitempty"`
	Strobe   *StrobeSpec            `yaml:"strobe,omitempty"`
	Sliders  map[string]ChannelSpec `yaml:"sliders,omitempty"`
	Settings map[string]SettingSpec `yaml:"settings,omitempty"`

	ElementCount  int         `yaml:"elementCount,omitempty"`
	ElementStride int         `yaml:"elementStride,omitempty"`
	ElementColour *ColourSpec `yaml:"elementColour,omitempty"`
}

// Build returns a *fixture.Fixture patched at (u, baseAddress), with every
// property this profile describes bound to its offset channel.
func (p FixtureProfile) Build(key, displayName string, u dmx.Universe, baseAddress int) (*fixture.Fixture, error) {
	f := fixture.New(key, displayName, p.Name)

	if p.Dimmer != nil {
		f.Sliders[fixture.PropertyDimmer] = fixture.NewSlider(p.Dimmer.binding(u, baseAddress))
	}
	if p.UV != nil {
		f.Sliders[fixture.PropertyUv] = fixture.NewSlider(p.UV.binding(u, baseAddress))
	}
	for name, spec := range p.Sliders {
		f.Sliders[name] = fixture.NewSlider(spec.binding(u, baseAddress))
	}
	if p.Colour != nil {
		f.Colour = fixture.NewColour(
			p.Colour.Red.binding(u, baseAddress),
			p.Colour.Green.binding(u, baseAddress),
			p.Colour.Blue.binding(u, baseAddress),
		)
	}
	if p.Position != nil {
		f.Position = fixture.NewPosition(p.Position.Pan.binding(u, baseAddress), p.Position.Tilt.binding(u, baseAddress))
	}
	if p.Strobe != nil {
		f.Strobe = fixture.NewStrobe(p.Strobe.Channel.binding(u, baseAddress), p.Strobe.OffValue, p.Strobe.FullOn)
	}
	for name, spec := range p.Settings {
		s, err := fixture.NewSetting(spec.Channel.binding(u, baseAddress), spec.Values...)
		if err != nil {
			return nil, fmt.Errorf("config: building setting %q for %q: %w", name, key, err)
		}
		f.Settings[name] = s
	}

	for i := 0; i < p.ElementCount; i++ {
		el := f.AddElement(fmt.Sprintf("%d", i+1))
		elementBase := baseAddress + i*p.ElementStride
		if p.ElementColour != nil {
			el.Colour = fixture.NewColour(
				p.ElementColour.Red.binding(u, elementBase),
				p.ElementColour.Green.binding(u, elementBase),
				p.ElementColour.Blue.binding(u, elementBase),
			)
		}
	}

	return f, nil
}

// DefaultProfiles returns the built-in profile catalog: a handful of
// common fixture types (RGBW PAR, RGBWAUV wash, moving-head spot, and a
// multi-segment pixel beam bar) loosely modeled on the Shehds product line
// this rig was originally patched with.
func DefaultProfiles() map[string]FixtureProfile {
	return map[string]FixtureProfile{
		"shehds-par": {
			Name:   "Shehds LED Flat PAR 12x3W RGBW",
			Dimmer: &ChannelSpec{Offset: 0},
			Colour: &ColourSpec{
				Red:   ChannelSpec{Offset: 1},
				Green: ChannelSpec{Offset: 2},
				Blue:  ChannelSpec{Offset: 3},
			},
			Sliders: map[string]ChannelSpec{
				"white": {Offset: 4},
			},
			Strobe: &StrobeSpec{Channel: ChannelSpec{Offset: 5}, OffValue: 0, FullOn: 255},
		},
		"shehds-spot": {
			Name:     "Shehds LED Spot 60W",
			Dimmer:   &ChannelSpec{Offset: 5},
			Position: &PositionSpec{Pan: ChannelSpec{Offset: 0}, Tilt: ChannelSpec{Offset: 1}},
			Sliders: map[string]ChannelSpec{
				"colourWheel": {Offset: 2},
				"gobo":        {Offset: 3},
			},
			Strobe: &StrobeSpec{Channel: ChannelSpec{Offset: 4}, OffValue: 0, FullOn: 255},
		},
		"shehds-wash": {
			Name:     "Shehds LED Wash 7x18W RGBWA+UV",
			Dimmer:   &ChannelSpec{Offset: 2},
			Position: &PositionSpec{Pan: ChannelSpec{Offset: 0}, Tilt: ChannelSpec{Offset: 1}},
			Colour: &ColourSpec{
				Red:   ChannelSpec{Offset: 3},
				Green: ChannelSpec{Offset: 4},
				Blue:  ChannelSpec{Offset: 5},
			},
			Sliders: map[string]ChannelSpec{
				"white": {Offset: 6},
				"amber": {Offset: 7},
			},
			UV: &ChannelSpec{Offset: 8},
		},
		"shehds-beam-bar-8px": {
			Name:          "Shehds LED Bar Beam 8x12W RGBW",
			Dimmer:        &ChannelSpec{Offset: 4},
			Position:      &PositionSpec{Pan: ChannelSpec{Offset: 0}, Tilt: ChannelSpec{Offset: 1}},
			ElementCount:  8,
			ElementStride: 4,
			ElementColour: &ColourSpec{
				Red:   ChannelSpec{Offset: 0},
				Green: ChannelSpec{Offset: 1},
				Blue:  ChannelSpec{Offset: 2},
			},
		},
	}
}
