// Package api exposes the fx engine over REST and WebSocket: an HTTP
// surface for clock and effect control, and a push channel for clients that
// want beat sync and live state without polling.
package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robmorgan/halofx/distribution"
	"github.com/robmorgan/halofx/effect"
)

// ParamSet is the parameter bag an AddEffectRequest carries, string-keyed
// and string-valued per the wire format; BuildEffect parses each effect
// type's own parameters out of it.
type ParamSet map[string]string

func (p ParamSet) byteParam(name string, def byte) byte {
	v, ok := p[name]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 255 {
		return def
	}
	return byte(n)
}

func (p ParamSet) floatParam(name string, def float64) float64 {
	v, ok := p[name]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (p ParamSet) intParam(name string, def int64) int64 {
	v, ok := p[name]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// rgbParam parses a "r,g,b" triple, falling back to def on anything else.
func (p ParamSet) rgbParam(name string, def effect.RGB) effect.RGB {
	v, ok := p[name]
	if !ok {
		return def
	}
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return def
	}
	out := def
	for i, field := range []*byte{&out.R, &out.G, &out.B} {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return def
		}
		*field = byte(n)
	}
	return out
}

// paletteParam parses a ";"-separated list of "r,g,b" triples into a
// palette, the only shape ColourCycle's []RGB argument can take in the
// string-keyed wire format, e.g. "255,0,0;0,255,0;0,0,255". Falls back to
// def on anything malformed, missing, or empty.
func (p ParamSet) paletteParam(name string, def []effect.RGB) []effect.RGB {
	v, ok := p[name]
	if !ok || v == "" {
		return def
	}
	entries := strings.Split(v, ";")
	out := make([]effect.RGB, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(entry, ",")
		if len(parts) != 3 {
			return def
		}
		var rgb effect.RGB
		for i, field := range []*byte{&rgb.R, &rgb.G, &rgb.B} {
			n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
			if err != nil || n < 0 || n > 255 {
				return def
			}
			*field = byte(n)
		}
		out = append(out, rgb)
	}
	return out
}

// EffectTypeInfo describes one entry in the effect library, for GET
// /fx/library: its name and the parameters BuildEffect understands for it.
type EffectTypeInfo struct {
	EffectType string   `json:"effectType"`
	OutputType string   `json:"outputType"`
	Parameters []string `json:"parameters"`
}

var outputTypeNames = map[effect.OutputType]string{
	effect.OutputSlider:   "SLIDER",
	effect.OutputColour:   "COLOUR",
	effect.OutputPosition: "POSITION",
}

// Library enumerates every effect type BuildEffect supports, with a sample
// instance of each used only to report its OutputType.
func Library() []EffectTypeInfo {
	entries := []struct {
		name   string
		sample effect.Effect
		params []string
	}{
		{"SINE_WAVE", effect.SineWave(0, 255), []string{"min", "max"}},
		{"RAMP_UP", effect.RampUp(0, 255, nil), []string{"min", "max"}},
		{"RAMP_DOWN", effect.RampDown(0, 255, nil), []string{"min", "max"}},
		{"TRIANGLE", effect.Triangle(0, 255, nil), []string{"min", "max"}},
		{"PULSE", effect.Pulse(0, 255, 0.5, 0), []string{"min", "max", "attackRatio", "holdRatio"}},
		{"SQUARE_WAVE", effect.SquareWave(0, 255, 0.5), []string{"min", "max", "dutyCycle"}},
		{"STROBE", effect.Strobe(0, 255, 0.1), []string{"offValue", "onValue", "onRatio"}},
		{"FLICKER", effect.Flicker(0, 255, 0), []string{"min", "max", "salt"}},
		{"BREATHE", effect.Breathe(0, 255), []string{"min", "max"}},
		{"STATIC_VALUE", effect.StaticValue(255), []string{"value"}},
		{"RAINBOW_CYCLE", effect.RainbowCycle(1, 1), []string{"saturation", "brightness"}},
		{"COLOUR_STROBE", effect.ColourStrobe(effect.RGB{}, effect.RGB{}, 0.1), []string{"on", "off", "onRatio"}},
		{"COLOUR_PULSE", effect.ColourPulse(effect.RGB{}, effect.RGB{}), []string{"a", "b"}},
		{"COLOUR_FADE", effect.ColourFade(effect.RGB{}, effect.RGB{}, false), []string{"from", "to", "pingPong"}},
		{"COLOUR_FLICKER", effect.ColourFlicker(effect.RGB{}, 0.2, 0), []string{"base", "variation", "salt"}},
		{"STATIC_COLOUR", effect.StaticColour(effect.RGB{}), []string{"colour"}},
		{"COLOUR_CYCLE", effect.ColourCycle(nil, 0.2), []string{"palette", "fadeRatio"}},
		{"CIRCLE", effect.Circle(128, 128, 64, 64), []string{"panCenter", "tiltCenter", "panRadius", "tiltRadius"}},
		{"FIGURE_8", effect.Figure8(128, 128, 64, 64), []string{"panCenter", "tiltCenter", "panRadius", "tiltRadius"}},
		{"SWEEP", effect.Sweep(0, 255, 0, 255, nil), []string{"panMin", "panMax", "tiltMin", "tiltMax"}},
		{"PAN_SWEEP", effect.PanSweep(0, 255, 128, nil), []string{"min", "max", "tilt"}},
		{"TILT_SWEEP", effect.TiltSweep(0, 255, 128, nil), []string{"min", "max", "pan"}},
		{"RANDOM_POSITION", effect.RandomPosition(effect.PanTilt{Pan: 128, Tilt: 128}, 0.5, 0), []string{"pan", "tilt", "rangeSpan", "salt"}},
		{"STATIC_POSITION", effect.StaticPosition(128, 128), []string{"pan", "tilt"}},
	}

	out := make([]EffectTypeInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, EffectTypeInfo{
			EffectType: e.name,
			OutputType: outputTypeNames[e.sample.OutputType()],
			Parameters: e.params,
		})
	}
	return out
}

// BuildEffect constructs the named effect type from its wire parameters.
// Unknown effect type is the caller's 400.
func BuildEffect(effectType string, params ParamSet) (effect.Effect, error) {
	switch strings.ToUpper(effectType) {
	case "SINE_WAVE":
		return effect.SineWave(params.byteParam("min", 0), params.byteParam("max", 255)), nil
	case "RAMP_UP":
		return effect.RampUp(params.byteParam("min", 0), params.byteParam("max", 255), nil), nil
	case "RAMP_DOWN":
		return effect.RampDown(params.byteParam("min", 0), params.byteParam("max", 255), nil), nil
	case "TRIANGLE":
		return effect.Triangle(params.byteParam("min", 0), params.byteParam("max", 255), nil), nil
	case "PULSE":
		return effect.Pulse(params.byteParam("min", 0), params.byteParam("max", 255),
			params.floatParam("attackRatio", 0.5), params.floatParam("holdRatio", 0)), nil
	case "SQUARE_WAVE":
		return effect.SquareWave(params.byteParam("min", 0), params.byteParam("max", 255), params.floatParam("dutyCycle", 0.5)), nil
	case "STROBE":
		return effect.Strobe(params.byteParam("offValue", 0), params.byteParam("onValue", 255), params.floatParam("onRatio", 0.1)), nil
	case "FLICKER":
		return effect.Flicker(params.byteParam("min", 0), params.byteParam("max", 255), params.intParam("salt", 0)), nil
	case "BREATHE":
		return effect.Breathe(params.byteParam("min", 0), params.byteParam("max", 255)), nil
	case "STATIC_VALUE":
		return effect.StaticValue(params.byteParam("value", 255)), nil
	case "RAINBOW_CYCLE":
		return effect.RainbowCycle(params.floatParam("saturation", 1), params.floatParam("brightness", 1)), nil
	case "COLOUR_STROBE":
		return effect.ColourStrobe(params.rgbParam("on", effect.RGB{}), params.rgbParam("off", effect.RGB{}), params.floatParam("onRatio", 0.1)), nil
	case "COLOUR_PULSE":
		return effect.ColourPulse(params.rgbParam("a", effect.RGB{}), params.rgbParam("b", effect.RGB{})), nil
	case "COLOUR_FADE":
		return effect.ColourFade(params.rgbParam("from", effect.RGB{}), params.rgbParam("to", effect.RGB{}), params.intParam("pingPong", 0) != 0), nil
	case "COLOUR_FLICKER":
		return effect.ColourFlicker(params.rgbParam("base", effect.RGB{}), params.floatParam("variation", 0.2), params.intParam("salt", 0)), nil
	case "STATIC_COLOUR":
		return effect.StaticColour(params.rgbParam("colour", effect.RGB{})), nil
	case "COLOUR_CYCLE":
		return effect.ColourCycle(params.paletteParam("palette", nil), params.floatParam("fadeRatio", 0.2)), nil
	case "CIRCLE":
		return effect.Circle(params.byteParam("panCenter", 128), params.byteParam("tiltCenter", 128),
			params.byteParam("panRadius", 64), params.byteParam("tiltRadius", 64)), nil
	case "FIGURE_8":
		return effect.Figure8(params.byteParam("panCenter", 128), params.byteParam("tiltCenter", 128),
			params.byteParam("panRadius", 64), params.byteParam("tiltRadius", 64)), nil
	case "SWEEP":
		return effect.Sweep(params.byteParam("panMin", 0), params.byteParam("panMax", 255),
			params.byteParam("tiltMin", 0), params.byteParam("tiltMax", 255), nil), nil
	case "PAN_SWEEP":
		return effect.PanSweep(params.byteParam("min", 0), params.byteParam("max", 255), params.byteParam("tilt", 128), nil), nil
	case "TILT_SWEEP":
		return effect.TiltSweep(params.byteParam("min", 0), params.byteParam("max", 255), params.byteParam("pan", 128), nil), nil
	case "RANDOM_POSITION":
		center := effect.PanTilt{Pan: params.byteParam("pan", 128), Tilt: params.byteParam("tilt", 128)}
		return effect.RandomPosition(center, params.floatParam("rangeSpan", 0.5), params.intParam("salt", 0)), nil
	case "STATIC_POSITION":
		return effect.StaticPosition(params.byteParam("pan", 128), params.byteParam("tilt", 128)), nil
	default:
		return nil, fmt.Errorf("api: unknown effect type %q", effectType)
	}
}

var distributionStrategies = map[string]func() distribution.Strategy{
	"UNIFIED":    distribution.Unified,
	"LINEAR":     distribution.Linear,
	"REVERSE":    distribution.Reverse,
	"CENTER_OUT": distribution.CenterOut,
	"EDGES_IN":   distribution.EdgesIn,
	"SPLIT":      distribution.Split,
	"PING_PONG":  distribution.PingPong,
	"POSITIONAL": distribution.Positional,
}

// DistributionStrategyNames lists every strategy name BuildDistribution
// accepts, for GET /groups/distribution-strategies.
func DistributionStrategyNames() []string {
	names := make([]string, 0, len(distributionStrategies)+1)
	for name := range distributionStrategies {
		names = append(names, name)
	}
	names = append(names, "RANDOM")
	return names
}

// BuildDistribution resolves a strategy name to a distribution.Strategy.
// RANDOM additionally accepts a "seed" parameter. Defaults to Linear when
// name is empty, matching AddEffectRequest's documented default.
func BuildDistribution(name string, params ParamSet) (distribution.Strategy, error) {
	if name == "" {
		return distribution.Linear(), nil
	}
	if strings.ToUpper(name) == "RANDOM" {
		return distribution.Random(params.intParam("seed", 0)), nil
	}
	ctor, ok := distributionStrategies[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("api: unknown distribution strategy %q", name)
	}
	return ctor(), nil
}
