package dmx

import (
	"time"
)

// TickInterval is the fade engine's interpolation resolution.
const TickInterval = 10 * time.Millisecond

// ChannelChange requests a channel move to targetValue, either immediately
// (fadeMs == 0) or interpolated over fadeMs milliseconds.
type ChannelChange struct {
	TargetValue byte
	FadeMs      int
}

// direction of an in-progress fade, used to pick the rounding mode that
// guarantees the interpolation reaches its target without overshoot.
type direction int

const (
	directionNone direction = iota
	directionUp
	directionDown
)

// fadeState is the per-channel state machine: either idle at a value, or
// interpolating from one byte to another over a fixed number of 10ms steps.
type fadeState struct {
	value byte

	fading         bool
	from           int
	to             int
	current        float64 // sub-byte precision accumulator
	stepSize       float64
	stepsRemaining int
	dir            direction
}

// ChannelFadeEngine owns the 512 FadeStates of a single universe and
// interpolates them at 10ms resolution.
type ChannelFadeEngine struct {
	states   [ChannelCount]fadeState
	dirty    map[int]byte
	lastTick time.Time
}

// NewChannelFadeEngine returns an engine with all channels idle at zero. now
// anchors the interpolation clock; the first Tick call advances relative to it.
func NewChannelFadeEngine(now time.Time) *ChannelFadeEngine {
	return &ChannelFadeEngine{
		dirty:    make(map[int]byte),
		lastTick: now,
	}
}

// Set applies a ChannelChange to a single 1-indexed channel. A fadeMs of 0
// sets the value immediately at the next transmit boundary; otherwise it
// begins (or replaces) an interpolation from the current materialized value.
func (e *ChannelFadeEngine) Set(channel int, change ChannelChange) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	idx := channel - 1
	target := int(change.TargetValue)

	st := &e.states[idx]
	current := int(st.value)

	if change.FadeMs <= 0 {
		st.fading = false
		st.value = change.TargetValue
		e.markDirty(channel, st.value)
		return nil
	}

	if target == current && !st.fading {
		// No-op: already at target and nothing in flight.
		return nil
	}

	steps := (change.FadeMs + 9) / 10 // ceil(fadeMs/10)
	if steps < 1 {
		steps = 1
	}

	delta := float64(target - current)
	var dir direction
	var stepSize float64
	switch {
	case target > current:
		dir = directionUp
		stepSize = delta / float64(steps)
	case target < current:
		dir = directionDown
		stepSize = delta / float64(steps)
	default:
		dir = directionNone
		stepSize = 0
	}

	st.fading = true
	st.from = current
	st.to = target
	st.current = float64(current)
	st.stepSize = stepSize
	st.stepsRemaining = steps
	st.dir = dir

	return nil
}

func (e *ChannelFadeEngine) markDirty(channel int, value byte) {
	e.dirty[channel] = value
}

// Tick advances all in-progress fades by the whole number of 10ms steps that
// have elapsed since the previous Tick (or since engine creation, on the
// first call). Missed wall-clock time is consumed all at once, never
// retro-played step by step.
func (e *ChannelFadeEngine) Tick(now time.Time) {
	elapsed := now.Sub(e.lastTick)
	steps := int(elapsed / TickInterval)
	if steps < 1 {
		return
	}
	e.lastTick = e.lastTick.Add(time.Duration(steps) * TickInterval)

	for ch := 1; ch <= ChannelCount; ch++ {
		st := &e.states[ch-1]
		if !st.fading {
			continue
		}

		apply := steps
		if apply > st.stepsRemaining {
			apply = st.stepsRemaining
		}
		st.stepsRemaining -= apply

		before := st.value
		if st.stepsRemaining == 0 {
			st.value = roundByte(float64(st.to))
			st.fading = false
		} else {
			st.current += st.stepSize * float64(apply)
			st.value = clampedRoundedByte(st.current, st.dir, st.from, st.to)
		}

		if st.value != before {
			e.markDirty(ch, st.value)
		}
	}
}

// roundByte rounds and clamps a float to a valid DMX byte.
func roundByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}

// clampedRoundedByte applies the direction-appropriate rounding (floor while
// ascending, ceil while descending) so an in-progress fade never overshoots
// its target on an intermediate step.
func clampedRoundedByte(v float64, dir direction, from, to int) byte {
	var b int
	switch dir {
	case directionUp:
		b = int(v) // floor
		if b > to {
			b = to
		}
	case directionDown:
		b = int(v)
		if v != float64(b) {
			b++ // ceil
		}
		if b < to {
			b = to
		}
	default:
		b = to
	}
	if b < 0 {
		b = 0
	}
	if b > 255 {
		b = 255
	}
	return byte(b)
}

// Snapshot returns a read-only 512-byte copy of the current materialized values.
func (e *ChannelFadeEngine) Snapshot() [ChannelCount]byte {
	var out [ChannelCount]byte
	for i := range e.states {
		out[i] = e.states[i].value
	}
	return out
}

// Value returns the current materialized byte for a single 1-indexed channel.
func (e *ChannelFadeEngine) Value(channel int) (byte, error) {
	if err := ValidateChannel(channel); err != nil {
		return 0, err
	}
	return e.states[channel-1].value, nil
}

// DrainDirty returns and clears the set of channels whose materialized value
// changed since the previous DrainDirty call.
func (e *ChannelFadeEngine) DrainDirty() map[int]byte {
	if len(e.dirty) == 0 {
		return nil
	}
	out := e.dirty
	e.dirty = make(map[int]byte)
	return out
}
