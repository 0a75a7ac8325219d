// Package fx implements the FxEngine: the per-tick pipeline that evaluates
// running effect instances, blends their outputs per target channel, and
// flushes the result through a ControllerTransaction.
package fx

import (
	"fmt"

	"github.com/robmorgan/halofx/distribution"
	"github.com/robmorgan/halofx/effect"
)

// BlendMode controls how an instance's output combines with whatever else
// is already accumulated for the same channel this tick.
type BlendMode int

const (
	Override BlendMode = iota
	Additive
	Multiply
	Max
	Min
)

// ParseBlendMode maps a wire/REST enum name to a BlendMode.
func ParseBlendMode(name string) (BlendMode, error) {
	switch name {
	case "OVERRIDE", "":
		return Override, nil
	case "ADDITIVE":
		return Additive, nil
	case "MULTIPLY":
		return Multiply, nil
	case "MAX":
		return Max, nil
	case "MIN":
		return Min, nil
	default:
		return Override, fmt.Errorf("fx: unknown blend mode %q", name)
	}
}

func (m BlendMode) String() string {
	switch m {
	case Override:
		return "OVERRIDE"
	case Additive:
		return "ADDITIVE"
	case Multiply:
		return "MULTIPLY"
	case Max:
		return "MAX"
	case Min:
		return "MIN"
	default:
		return "UNKNOWN"
	}
}

// ElementMode controls how a GroupRef instance distributes across
// multi-element fixtures when none of the group's leaves directly expose
// the target property.
type ElementMode int

const (
	// PerFixture distributes within each parent fixture independently; the
	// phase pattern is identical across parents.
	PerFixture ElementMode = iota
	// Flat concatenates every element of every leaf into one sequence and
	// distributes across the whole.
	Flat
)

// ParseElementMode maps a wire/REST enum name to an ElementMode.
func ParseElementMode(name string) (ElementMode, error) {
	switch name {
	case "PER_FIXTURE", "":
		return PerFixture, nil
	case "FLAT":
		return Flat, nil
	default:
		return PerFixture, fmt.Errorf("fx: unknown element mode %q", name)
	}
}

// TargetKind distinguishes a single-fixture target from a group target.
type TargetKind int

const (
	FixtureTarget TargetKind = iota
	GroupTarget
)

// TargetRef names what an instance is aimed at: one fixture key, or one
// group name.
type TargetRef struct {
	Kind TargetKind
	Key  string
}

// FixtureRef builds a fixture-keyed target reference.
func FixtureRef(key string) TargetRef { return TargetRef{Kind: FixtureTarget, Key: key} }

// GroupRef builds a group-named target reference.
func GroupRef(name string) TargetRef { return TargetRef{Kind: GroupTarget, Key: name} }

// Timing controls when a newly-added instance begins.
type Timing struct {
	// StartOnBeat, if true, anchors startEpochTick to the next tick whose
	// index is a multiple of rhythm.TicksPerBeat rather than the current
	// tick.
	StartOnBeat bool
}

// FxInstance is one running (or paused) effect binding. Effect, Target,
// Property, BeatDivision, BlendMode, and StepTiming are treated as
// immutable: changing any of them is an atomic swap of the whole instance,
// preserving StartEpochTick and IsRunning. PhaseOffset, Distribution, and
// ElementMode are mutable in place.
type FxInstance struct {
	ID             uint64
	Effect         effect.Effect
	Target         TargetRef
	Property       string
	BeatDivision   float64
	BlendMode      BlendMode
	StepTiming     bool
	StartEpochTick uint64
	IsRunning      bool

	PhaseOffset  float64
	Distribution distribution.Strategy
	ElementMode  ElementMode

	// LastPhase is the memberPhase of the last member processed this tick,
	// retained only for observability (status/debug endpoints).
	LastPhase float64
}

// AddEffectRequest describes a new instance to be added to an FxEngine.
// Fields left at their zero value take the documented defaults:
// BeatDivision=1.0, BlendMode=Override, Distribution=distribution.Linear(),
// StepTiming=effect's own default. A zero Timing leaves StartOnBeat false,
// so the instance starts on the current tick.
type AddEffectRequest struct {
	Effect       effect.Effect
	Target       TargetRef
	Property     string
	BeatDivision float64
	BlendMode    BlendMode
	Timing       Timing
	PhaseOffset  float64
	Distribution distribution.Strategy
	StepTiming   *bool
	ElementMode  ElementMode
}

func (r AddEffectRequest) normalized() AddEffectRequest {
	out := r
	if out.BeatDivision == 0 {
		out.BeatDivision = 1.0
	}
	if out.Distribution == nil {
		out.Distribution = distribution.Linear()
	}
	return out
}

func (r AddEffectRequest) stepTiming() bool {
	if r.StepTiming != nil {
		return *r.StepTiming
	}
	return r.Effect.DefaultStepTiming()
}
