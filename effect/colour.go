package effect

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

func toColorful(c RGB) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func fromColorful(c colorful.Color) RGB {
	r, g, b := c.Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}

func blendRGB(a, b RGB, t float64) RGB {
	return fromColorful(toColorful(a).BlendRgb(toColorful(b), t))
}

type colourCycle struct {
	palette   []RGB
	fadeRatio float64
}

// ColourCycle steps through palette over one cycle, cross-fading between
// consecutive colours for fadeRatio of each step's share of the cycle.
func ColourCycle(palette []RGB, fadeRatio float64) Effect {
	return colourCycle{palette: palette, fadeRatio: fadeRatio}
}

func (c colourCycle) Calculate(phase float64, _ EffectContext) FxOutput {
	n := len(c.palette)
	if n == 0 {
		return FxOutput{Type: OutputColour}
	}
	if n == 1 {
		return FxOutput{Type: OutputColour, Colour: c.palette[0]}
	}

	stepWidth := 1.0 / float64(n)
	step := int(math.Floor(phase / stepWidth))
	if step >= n {
		step = n - 1
	}
	withinStep := (phase - float64(step)*stepWidth) / stepWidth

	current := c.palette[step]
	next := c.palette[(step+1)%n]

	if c.fadeRatio <= 0 || withinStep < 1-c.fadeRatio {
		return FxOutput{Type: OutputColour, Colour: current}
	}
	fadeT := (withinStep - (1 - c.fadeRatio)) / c.fadeRatio
	return FxOutput{Type: OutputColour, Colour: blendRGB(current, next, fadeT)}
}
func (colourCycle) OutputType() OutputType  { return OutputColour }
func (colourCycle) DefaultStepTiming() bool { return false }

type rainbowCycle struct{ saturation, brightness float64 }

// RainbowCycle sweeps hue through the full 360 degrees once per cycle at a
// fixed saturation and brightness.
func RainbowCycle(saturation, brightness float64) Effect {
	return rainbowCycle{saturation, brightness}
}

func (r rainbowCycle) Calculate(phase float64, _ EffectContext) FxOutput {
	hue := phase * 360
	return FxOutput{Type: OutputColour, Colour: fromColorful(colorful.Hsv(hue, r.saturation, r.brightness))}
}
func (rainbowCycle) OutputType() OutputType  { return OutputColour }
func (rainbowCycle) DefaultStepTiming() bool { return false }

type colourStrobe struct {
	on, off RGB
	onRatio float64
}

// ColourStrobe alternates between on and off, with on held for onRatio of
// the cycle.
func ColourStrobe(on, off RGB, onRatio float64) Effect {
	return colourStrobe{on, off, onRatio}
}

func (c colourStrobe) Calculate(phase float64, _ EffectContext) FxOutput {
	if phase < c.onRatio {
		return FxOutput{Type: OutputColour, Colour: c.on}
	}
	return FxOutput{Type: OutputColour, Colour: c.off}
}
func (colourStrobe) OutputType() OutputType  { return OutputColour }
func (colourStrobe) DefaultStepTiming() bool { return true }

type colourPulse struct{ a, b RGB }

// ColourPulse eases back and forth between a and b once per cycle.
func ColourPulse(a, b RGB) Effect { return colourPulse{a, b} }

func (c colourPulse) Calculate(phase float64, _ EffectContext) FxOutput {
	t := (1 + math.Sin(2*math.Pi*phase)) / 2
	return FxOutput{Type: OutputColour, Colour: blendRGB(c.a, c.b, t)}
}
func (colourPulse) OutputType() OutputType  { return OutputColour }
func (colourPulse) DefaultStepTiming() bool { return false }

type colourFade struct {
	from, to RGB
	pingPong bool
}

// ColourFade moves linearly from from to to over the cycle. With pingPong
// it eases back to from over the second half instead of snapping.
func ColourFade(from, to RGB, pingPong bool) Effect {
	return colourFade{from, to, pingPong}
}

func (c colourFade) Calculate(phase float64, _ EffectContext) FxOutput {
	if !c.pingPong {
		return FxOutput{Type: OutputColour, Colour: blendRGB(c.from, c.to, phase)}
	}
	var t float64
	if phase < 0.5 {
		t = phase * 2
	} else {
		t = 2 * (1 - phase)
	}
	return FxOutput{Type: OutputColour, Colour: blendRGB(c.from, c.to, t)}
}
func (colourFade) OutputType() OutputType  { return OutputColour }
func (colourFade) DefaultStepTiming() bool { return false }

type colourFlicker struct {
	base      RGB
	variation float64
	salt      int64
}

// ColourFlicker jitters base's brightness deterministically per phase
// bucket, the colour analogue of Flicker.
func ColourFlicker(base RGB, variation float64, salt int64) Effect {
	return colourFlicker{base, variation, salt}
}

func (c colourFlicker) Calculate(phase float64, _ EffectContext) FxOutput {
	sample := seededSample(c.salt, phase)
	factor := 1 - c.variation + c.variation*2*sample
	hsv := toColorful(c.base)
	h, s, v := hsv.Hsv()
	v = math.Max(0, math.Min(1, v*factor))
	return FxOutput{Type: OutputColour, Colour: fromColorful(colorful.Hsv(h, s, v))}
}
func (colourFlicker) OutputType() OutputType  { return OutputColour }
func (colourFlicker) DefaultStepTiming() bool { return false }

type staticColour struct{ colour RGB }

// StaticColour holds colour within its distribution window and black
// outside it.
func StaticColour(colour RGB) Effect { return staticColour{colour} }

func (s staticColour) Calculate(phase float64, ctx EffectContext) FxOutput {
	if staticActive(phase, ctx) {
		return FxOutput{Type: OutputColour, Colour: s.colour}
	}
	return FxOutput{Type: OutputColour, Colour: RGB{}}
}
func (staticColour) OutputType() OutputType  { return OutputColour }
func (staticColour) DefaultStepTiming() bool { return true }
