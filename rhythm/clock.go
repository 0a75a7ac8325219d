// Package rhythm implements the MasterClock: a tempo-synchronized tick
// source shared read-only among effect consumers.
//
// Originally modeled on a metronome that re-anchors its start time on tempo
// change so elapsed beat and phase keep moving smoothly; generalized here
// to a 24-tick-per-beat resolution with tap-tempo and beat-division support.
package rhythm

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/robmorgan/halofx/logging"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// TicksPerBeat is the clock's tick resolution.
const TicksPerBeat = 24

// Beat division constants, expressed in beats per cycle.
const (
	ThirtySecond = 0.125
	Sixteenth    = 0.25
	Triplet      = 1.0 / 3.0
	Eighth       = 0.5
	Quarter      = 1.0
	Half         = 2.0
	Whole        = 4.0
	OneBar       = 4.0
	TwoBars      = 8.0
)

const (
	minBPM = 20.0
	maxBPM = 300.0

	// tapResetWindow is the maximum gap between taps before tap-tempo
	// history is discarded and restarted.
	tapResetWindow = 2 * time.Second
	maxTapHistory  = 4
)

// Tick is broadcast to subscribers once per 1/24th of a beat.
type Tick struct {
	Index          uint64
	MonotonicNanos int64
	IsBeat         bool
}

// Listener receives ticks in index order. Listeners must not block.
type Listener func(Tick)

// MasterClock produces a steady stream of Ticks at 24/beat resolution,
// supports tap tempo, and re-anchors its beat origin on a BPM change so
// the current sub-beat phase is preserved rather than jumping.
type MasterClock struct {
	clk clock.Clock
	log *logrus.Entry

	mu             sync.Mutex
	bpm            float64
	isRunning      bool
	beatEpochNanos int64
	tapHistory     []time.Time

	listenersMu sync.Mutex
	listeners   []Listener
}

// New returns a stopped MasterClock at the given starting BPM.
func New(bpm float64, clk clock.Clock) *MasterClock {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MasterClock{
		clk: clk,
		log: logging.GetProjectLogger().WithField("component", "masterclock"),
		bpm: clampBPM(bpm),
	}
}

func clampBPM(bpm float64) float64 {
	if bpm < minBPM {
		return minBPM
	}
	if bpm > maxBPM {
		return maxBPM
	}
	return bpm
}

func tickInterval(bpm float64) time.Duration {
	secondsPerBeat := 60.0 / bpm
	return time.Duration(secondsPerBeat / TicksPerBeat * float64(time.Second))
}

// AddListener registers a non-blocking tick subscriber.
func (c *MasterClock) AddListener(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// BPM returns the current tempo.
func (c *MasterClock) BPM() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bpm
}

// IsRunning reports whether the tick-production loop is active.
func (c *MasterClock) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRunning
}

// BeatEpochNanos returns the wall-clock instant (UnixNano) at which beat 0
// is considered to have occurred, re-anchored across BPM changes.
func (c *MasterClock) BeatEpochNanos() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beatEpochNanos
}

// SetBPM changes tempo to bpm (clamped to [20,300]). The already-scheduled
// next tick is unaffected: only the interval computed for the tick after it
// reflects the new tempo, which avoids a phase jump. The reported beat
// epoch is re-anchored so a consumer re-deriving phase from it alone still
// sees a continuous timeline.
func (c *MasterClock) SetBPM(bpm float64) {
	bpm = clampBPM(bpm)
	now := c.clk.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		oldInterval := tickInterval(c.bpm)
		elapsed := now.Sub(time.Unix(0, c.beatEpochNanos))
		tickPosition := durationMillis(elapsed) / durationMillis(oldInterval)
		newInterval := tickInterval(bpm)
		shift := time.Duration(math.Round(tickPosition * float64(newInterval)))
		c.beatEpochNanos = now.Add(-shift).UnixNano()
	}
	c.bpm = bpm
}

// durationMillis converts a Duration to fractional milliseconds; Duration's
// own Milliseconds() truncates to an integer, which would bias the phase
// re-anchor for sub-millisecond tick intervals.
func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Tap records a tap-tempo event at now. Taps more than 2s apart reset the
// history; the BPM implied by the average interval of up to the last 4
// taps (clamped to [20,300]) becomes the new tempo once at least two taps
// have been recorded.
func (c *MasterClock) Tap(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.tapHistory) > 0 {
		last := c.tapHistory[len(c.tapHistory)-1]
		if now.Sub(last) > tapResetWindow {
			c.tapHistory = nil
		}
	}
	c.tapHistory = append(c.tapHistory, now)
	if len(c.tapHistory) > maxTapHistory {
		c.tapHistory = c.tapHistory[len(c.tapHistory)-maxTapHistory:]
	}
	if len(c.tapHistory) < 2 {
		return
	}

	total := c.tapHistory[len(c.tapHistory)-1].Sub(c.tapHistory[0])
	avgInterval := total / time.Duration(len(c.tapHistory)-1)
	bpm := clampBPM(60.0 / avgInterval.Seconds())
	c.bpm = bpm
}

// Run starts the clock's tick-production loop. It blocks until ctx is
// cancelled. Missed wall-clock time (e.g. the process was suspended) is not
// retro-generated as a burst of ticks: the loop resynchronizes to real time
// and resumes emitting on-schedule ticks.
func (c *MasterClock) Run(ctx context.Context) error {
	c.mu.Lock()
	now := c.clk.Now()
	c.beatEpochNanos = now.UnixNano()
	c.isRunning = true
	c.mu.Unlock()

	var tickIndex uint64
	nextTickTime := now

	for {
		sleep := nextTickTime.Sub(c.clk.Now())
		if sleep < 0 {
			sleep = 0
		}
		timer := c.clk.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.mu.Lock()
			c.isRunning = false
			c.mu.Unlock()
			return ctx.Err()
		case <-timer.C():
		}

		fired := c.clk.Now()
		isBeat := tickIndex%TicksPerBeat == 0
		c.fanOut(Tick{Index: tickIndex, MonotonicNanos: fired.UnixNano(), IsBeat: isBeat})

		tickIndex++
		nextTickTime = nextTickTime.Add(tickInterval(c.BPM()))
	}
}

func (c *MasterClock) fanOut(t Tick) {
	c.listenersMu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.listenersMu.Unlock()

	for _, l := range listeners {
		l(t)
	}
}

// NextBeatTick returns the index of the next tick index that is a multiple
// of TicksPerBeat, strictly greater than currentTick (or equal to it, if
// currentTick is itself already a beat boundary and inclusive is true).
func NextBeatTick(currentTick uint64, inclusive bool) uint64 {
	if currentTick%TicksPerBeat == 0 {
		if inclusive {
			return currentTick
		}
		return currentTick + TicksPerBeat
	}
	return currentTick + (TicksPerBeat - currentTick%TicksPerBeat)
}

// ParseBeatDivision validates a beat-division value against the published
// constants' domain: must be positive and finite.
func ParseBeatDivision(division float64) error {
	if division <= 0 || math.IsNaN(division) || math.IsInf(division, 0) {
		return fmt.Errorf("rhythm: invalid beat division %v", division)
	}
	return nil
}
