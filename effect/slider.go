package effect

import (
	"math"
	"math/rand"

	"github.com/fogleman/ease"
)

// flickerGranularity is the number of phase buckets Flicker-family effects
// hash into; identical (salt, bucket) pairs always yield the same sample.
const flickerGranularity = 256

// seededSample returns a deterministic pseudo-random value in [0,1) for a
// given salt and phase, so the same phase always reproduces the same
// output — required for effects under test and for replaying a tick.
func seededSample(salt int64, phase float64) float64 {
	bucket := int64(math.Floor(phase * flickerGranularity))
	seed := salt*2654435761 + bucket
	return rand.New(rand.NewSource(seed)).Float64()
}

type sineWave struct{ min, max byte }

// SineWave oscillates smoothly between min and max once per cycle.
func SineWave(min, max byte) Effect { return sineWave{min, max} }

func (s sineWave) Calculate(phase float64, _ EffectContext) FxOutput {
	v := float64(s.min) + (float64(s.max)-float64(s.min))*(1+math.Sin(2*math.Pi*phase))/2
	return FxOutput{Type: OutputSlider, Slider: clampByte(v)}
}
func (sineWave) OutputType() OutputType  { return OutputSlider }
func (sineWave) DefaultStepTiming() bool { return false }

type rampUp struct {
	min, max byte
	curve    ease.Function
}

// RampUp rises from min to max over one cycle, then wraps back to min.
func RampUp(min, max byte, curve ease.Function) Effect {
	if curve == nil {
		curve = ease.Linear
	}
	return rampUp{min, max, curve}
}

func (r rampUp) Calculate(phase float64, _ EffectContext) FxOutput {
	return FxOutput{Type: OutputSlider, Slider: lerpByte(r.min, r.max, r.curve(phase))}
}
func (rampUp) OutputType() OutputType  { return OutputSlider }
func (rampUp) DefaultStepTiming() bool { return false }

type rampDown struct {
	min, max byte
	curve    ease.Function
}

// RampDown falls from max to min over one cycle, then wraps back to max.
func RampDown(min, max byte, curve ease.Function) Effect {
	if curve == nil {
		curve = ease.Linear
	}
	return rampDown{min, max, curve}
}

func (r rampDown) Calculate(phase float64, _ EffectContext) FxOutput {
	return FxOutput{Type: OutputSlider, Slider: lerpByte(r.max, r.min, r.curve(phase))}
}
func (rampDown) OutputType() OutputType  { return OutputSlider }
func (rampDown) DefaultStepTiming() bool { return false }

type triangle struct {
	min, max byte
	curve    ease.Function
}

// Triangle rises from min to max over the first half-cycle and falls back
// to min over the second.
func Triangle(min, max byte, curve ease.Function) Effect {
	if curve == nil {
		curve = ease.Linear
	}
	return triangle{min, max, curve}
}

func (t triangle) Calculate(phase float64, _ EffectContext) FxOutput {
	tri := 1 - math.Abs(2*phase-1)
	return FxOutput{Type: OutputSlider, Slider: lerpByte(t.min, t.max, t.curve(tri))}
}
func (triangle) OutputType() OutputType  { return OutputSlider }
func (triangle) DefaultStepTiming() bool { return false }

type pulse struct {
	min, max                  byte
	attackRatio, holdRatio float64
}

// Pulse rises linearly from min to max over attackRatio of the cycle,
// holds at max for holdRatio, then falls linearly back to min over the
// remainder.
func Pulse(min, max byte, attackRatio, holdRatio float64) Effect {
	return pulse{min, max, attackRatio, holdRatio}
}

func (p pulse) Calculate(phase float64, _ EffectContext) FxOutput {
	switch {
	case phase < p.attackRatio:
		if p.attackRatio <= 0 {
			return FxOutput{Type: OutputSlider, Slider: p.max}
		}
		return FxOutput{Type: OutputSlider, Slider: lerpByte(p.min, p.max, phase/p.attackRatio)}
	case phase < p.attackRatio+p.holdRatio:
		return FxOutput{Type: OutputSlider, Slider: p.max}
	default:
		remainder := 1 - p.attackRatio - p.holdRatio
		if remainder <= 0 {
			return FxOutput{Type: OutputSlider, Slider: p.max}
		}
		t := (phase - p.attackRatio - p.holdRatio) / remainder
		return FxOutput{Type: OutputSlider, Slider: lerpByte(p.max, p.min, t)}
	}
}
func (pulse) OutputType() OutputType  { return OutputSlider }
func (pulse) DefaultStepTiming() bool { return false }

type squareWave struct {
	min, max   byte
	dutyCycle float64
}

// SquareWave outputs max for dutyCycle of the cycle, min otherwise.
func SquareWave(min, max byte, dutyCycle float64) Effect {
	return squareWave{min, max, dutyCycle}
}

func (s squareWave) Calculate(phase float64, _ EffectContext) FxOutput {
	if phase < s.dutyCycle {
		return FxOutput{Type: OutputSlider, Slider: s.max}
	}
	return FxOutput{Type: OutputSlider, Slider: s.min}
}
func (squareWave) OutputType() OutputType  { return OutputSlider }
func (squareWave) DefaultStepTiming() bool { return true }

type strobe struct {
	offValue, onValue byte
	onRatio           float64
}

// Strobe outputs onValue for onRatio of the cycle, offValue otherwise.
func Strobe(offValue, onValue byte, onRatio float64) Effect {
	return strobe{offValue, onValue, onRatio}
}

func (s strobe) Calculate(phase float64, _ EffectContext) FxOutput {
	if phase < s.onRatio {
		return FxOutput{Type: OutputSlider, Slider: s.onValue}
	}
	return FxOutput{Type: OutputSlider, Slider: s.offValue}
}
func (strobe) OutputType() OutputType  { return OutputSlider }
func (strobe) DefaultStepTiming() bool { return true }

type flicker struct {
	min, max byte
	salt     int64
}

// Flicker returns a deterministically pseudo-random value in [min,max] per
// phase bucket, simulating an unsteady lamp without being unpredictable in
// tests or replays.
func Flicker(min, max byte, salt int64) Effect {
	return flicker{min, max, salt}
}

func (f flicker) Calculate(phase float64, _ EffectContext) FxOutput {
	v := float64(f.min) + (float64(f.max)-float64(f.min))*seededSample(f.salt, phase)
	return FxOutput{Type: OutputSlider, Slider: clampByte(v)}
}
func (flicker) OutputType() OutputType  { return OutputSlider }
func (flicker) DefaultStepTiming() bool { return false }

type breathe struct{ min, max byte }

// Breathe eases between min and max with a gentler attack/release than
// SineWave, evoking a slow, organic breathing pace.
func Breathe(min, max byte) Effect { return breathe{min, max} }

func (b breathe) Calculate(phase float64, _ EffectContext) FxOutput {
	t := (1 - math.Cos(2*math.Pi*phase)) / 2
	smoothed := t * t * (3 - 2*t)
	return FxOutput{Type: OutputSlider, Slider: lerpByte(b.min, b.max, smoothed)}
}
func (breathe) OutputType() OutputType  { return OutputSlider }
func (breathe) DefaultStepTiming() bool { return false }

type staticValue struct{ value byte }

// StaticValue holds value within its distribution window and the neutral
// value (0) outside it.
func StaticValue(value byte) Effect { return staticValue{value} }

func (s staticValue) Calculate(phase float64, ctx EffectContext) FxOutput {
	if staticActive(phase, ctx) {
		return FxOutput{Type: OutputSlider, Slider: s.value}
	}
	return FxOutput{Type: OutputSlider, Slider: 0}
}
func (staticValue) OutputType() OutputType  { return OutputSlider }
func (staticValue) DefaultStepTiming() bool { return true }
