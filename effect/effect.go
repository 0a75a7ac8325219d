// Package effect implements the pure, deterministic effect functions an
// FxEngine evaluates once per target member per tick. Every effect is a
// stateless function of a phase in [0,1) and an EffectContext describing
// the member's place within its distribution; none of them retain
// cross-tick state themselves, the engine derives phase anew every tick.
package effect

import "math"

// OutputType identifies the kind of property an Effect produces values for.
type OutputType int

const (
	OutputSlider OutputType = iota
	OutputColour
	OutputPosition
)

// RGB is an 8-bit-per-channel colour output.
type RGB struct {
	R, G, B byte
}

// PanTilt is a pan/tilt position output, each axis 8-bit.
type PanTilt struct {
	Pan, Tilt byte
}

// FxOutput is the value an Effect produces for one member on one tick. Only
// the field matching Type is meaningful.
type FxOutput struct {
	Type     OutputType
	Slider   byte
	Colour   RGB
	Position PanTilt
}

// EffectContext describes a single target member's place within the group
// an effect is distributed across.
type EffectContext struct {
	GroupSize             int
	MemberIndex           int
	DistributionOffset    float64
	HasDistributionSpread bool
	NumDistinctSlots      int
	TrianglePhase         bool
}

// Effect is a pure function from phase to output, with declared metadata
// the FxEngine uses to drive it.
type Effect interface {
	Calculate(phase float64, ctx EffectContext) FxOutput
	OutputType() OutputType
	// DefaultStepTiming is the stepTiming an instance should use if the
	// caller did not specify one: true for windowed/static effects, false
	// for continuous ones.
	DefaultStepTiming() bool
}

func wrap01(x float64) float64 {
	m := math.Mod(x, 1)
	if m < 0 {
		m += 1
	}
	return m
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(math.Round(v))
}

func lerpByte(a, b byte, t float64) byte {
	return clampByte(float64(a) + (float64(b)-float64(a))*t)
}

// basePhase recovers the member's raw, pre-distribution-offset clock
// position from a phase already shifted by the distribution offset: the
// FxEngine computes memberPhase = (clock - distOff + 1) mod 1 before
// calling an effect, and Static-family effects use basePhase to reason
// about the shared clock rather than this member's shifted view of it.
func basePhase(shifted float64, ctx EffectContext) float64 {
	return wrap01(shifted + ctx.DistributionOffset)
}

// staticWindow returns the active window width for a Static-family effect:
// the fraction of one cycle during which the member should show its value
// rather than the neutral value.
func staticWindow(ctx EffectContext) float64 {
	slots := ctx.NumDistinctSlots
	if slots <= 0 {
		slots = 1
	}
	return 1.0 / float64(slots)
}

// staticActive implements the windowing rule shared by all StaticXxx
// effects, distinguishing the ping-pong case (which checks a centered,
// wraparound-safe distance) from the linear case (a forward-only window
// anchored at the member's distribution offset).
func staticActive(phase float64, ctx EffectContext) bool {
	window := staticWindow(ctx)
	bp := basePhase(phase, ctx)

	if ctx.TrianglePhase {
		d := wrap01(bp - ctx.DistributionOffset)
		if d > 0.5 {
			d -= 1
		}
		return math.Abs(d) < window/2
	}

	v := wrap01(bp - ctx.DistributionOffset)
	return v < window
}
