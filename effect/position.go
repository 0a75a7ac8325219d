package effect

import (
	"math"

	"github.com/fogleman/ease"
)

type circle struct {
	panCenter, tiltCenter byte
	panRadius, tiltRadius byte
}

// Circle traces an ellipse (or circle, when the radii match) around
// (panCenter, tiltCenter) once per cycle.
func Circle(panCenter, tiltCenter, panRadius, tiltRadius byte) Effect {
	return circle{panCenter, tiltCenter, panRadius, tiltRadius}
}

func (c circle) Calculate(phase float64, _ EffectContext) FxOutput {
	angle := 2 * math.Pi * phase
	pan := float64(c.panCenter) + float64(c.panRadius)*math.Cos(angle)
	tilt := float64(c.tiltCenter) + float64(c.tiltRadius)*math.Sin(angle)
	return FxOutput{Type: OutputPosition, Position: PanTilt{Pan: clampByte(pan), Tilt: clampByte(tilt)}}
}
func (circle) OutputType() OutputType  { return OutputPosition }
func (circle) DefaultStepTiming() bool { return false }

type figure8 struct {
	panCenter, tiltCenter byte
	panRadius, tiltRadius byte
}

// Figure8 traces a lemniscate around (panCenter, tiltCenter) once per
// cycle.
func Figure8(panCenter, tiltCenter, panRadius, tiltRadius byte) Effect {
	return figure8{panCenter, tiltCenter, panRadius, tiltRadius}
}

func (f figure8) Calculate(phase float64, _ EffectContext) FxOutput {
	angle := 2 * math.Pi * phase
	pan := float64(f.panCenter) + float64(f.panRadius)*math.Sin(angle)
	tilt := float64(f.tiltCenter) + float64(f.tiltRadius)*math.Sin(angle)*math.Cos(angle)
	return FxOutput{Type: OutputPosition, Position: PanTilt{Pan: clampByte(pan), Tilt: clampByte(tilt)}}
}
func (figure8) OutputType() OutputType  { return OutputPosition }
func (figure8) DefaultStepTiming() bool { return false }

type sweep struct {
	panMin, panMax   byte
	tiltMin, tiltMax byte
	curve            ease.Function
}

// Sweep moves pan and tilt together from their min bounds to their max
// bounds and back over one cycle, shaped by curve.
func Sweep(panMin, panMax, tiltMin, tiltMax byte, curve ease.Function) Effect {
	if curve == nil {
		curve = ease.Linear
	}
	return sweep{panMin, panMax, tiltMin, tiltMax, curve}
}

func (s sweep) Calculate(phase float64, _ EffectContext) FxOutput {
	tri := 1 - math.Abs(2*phase-1)
	t := s.curve(tri)
	return FxOutput{Type: OutputPosition, Position: PanTilt{
		Pan:  lerpByte(s.panMin, s.panMax, t),
		Tilt: lerpByte(s.tiltMin, s.tiltMax, t),
	}}
}
func (sweep) OutputType() OutputType  { return OutputPosition }
func (sweep) DefaultStepTiming() bool { return false }

type panSweep struct {
	min, max byte
	tilt     byte
	curve    ease.Function
}

// PanSweep sweeps pan between min and max, holding tilt fixed.
func PanSweep(min, max, tilt byte, curve ease.Function) Effect {
	if curve == nil {
		curve = ease.Linear
	}
	return panSweep{min, max, tilt, curve}
}

func (p panSweep) Calculate(phase float64, _ EffectContext) FxOutput {
	tri := 1 - math.Abs(2*phase-1)
	return FxOutput{Type: OutputPosition, Position: PanTilt{Pan: lerpByte(p.min, p.max, p.curve(tri)), Tilt: p.tilt}}
}
func (panSweep) OutputType() OutputType  { return OutputPosition }
func (panSweep) DefaultStepTiming() bool { return false }

type tiltSweep struct {
	min, max byte
	pan      byte
	curve    ease.Function
}

// TiltSweep sweeps tilt between min and max, holding pan fixed.
func TiltSweep(min, max, pan byte, curve ease.Function) Effect {
	if curve == nil {
		curve = ease.Linear
	}
	return tiltSweep{min, max, pan, curve}
}

func (t tiltSweep) Calculate(phase float64, _ EffectContext) FxOutput {
	tri := 1 - math.Abs(2*phase-1)
	return FxOutput{Type: OutputPosition, Position: PanTilt{Pan: t.pan, Tilt: lerpByte(t.min, t.max, t.curve(tri))}}
}
func (tiltSweep) OutputType() OutputType  { return OutputPosition }
func (tiltSweep) DefaultStepTiming() bool { return false }

type randomPosition struct {
	center     PanTilt
	rangeSpan  float64
	salt       int64
}

// RandomPosition jitters deterministically around center within rangeSpan
// (applied symmetrically to each axis), sampling a fresh position once per
// flicker bucket.
func RandomPosition(center PanTilt, rangeSpan float64, salt int64) Effect {
	return randomPosition{center, rangeSpan, salt}
}

func (r randomPosition) Calculate(phase float64, _ EffectContext) FxOutput {
	panSample := seededSample(r.salt, phase)
	tiltSample := seededSample(r.salt+1, phase)
	pan := float64(r.center.Pan) + (panSample*2-1)*r.rangeSpan
	tilt := float64(r.center.Tilt) + (tiltSample*2-1)*r.rangeSpan
	return FxOutput{Type: OutputPosition, Position: PanTilt{Pan: clampByte(pan), Tilt: clampByte(tilt)}}
}
func (randomPosition) OutputType() OutputType  { return OutputPosition }
func (randomPosition) DefaultStepTiming() bool { return false }

type staticPosition struct{ pan, tilt byte }

// StaticPosition holds (pan, tilt) within its distribution window and
// center position outside it.
func StaticPosition(pan, tilt byte) Effect { return staticPosition{pan, tilt} }

func (s staticPosition) Calculate(phase float64, ctx EffectContext) FxOutput {
	if staticActive(phase, ctx) {
		return FxOutput{Type: OutputPosition, Position: PanTilt{Pan: s.pan, Tilt: s.tilt}}
	}
	return FxOutput{Type: OutputPosition, Position: PanTilt{Pan: 128, Tilt: 128}}
}
func (staticPosition) OutputType() OutputType  { return OutputPosition }
func (staticPosition) DefaultStepTiming() bool { return true }
