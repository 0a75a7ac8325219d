package dmx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChannelFadeEngine_ImmediateSet(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0)
	e := NewChannelFadeEngine(base)

	require.NoError(t, e.Set(1, ChannelChange{TargetValue: 200}))
	v, err := e.Value(1)
	require.NoError(t, err)
	require.Equal(t, byte(200), v)

	dirty := e.DrainDirty()
	require.Equal(t, map[int]byte{1: 200}, dirty)
	require.Nil(t, e.DrainDirty())
}

// TestChannelFadeEngine_MidFade reproduces scenario S1: a 100ms fade to 200
// observed at t=40ms should land in [80, 81], matching the ceil(100/10)=10
// step count and floor rounding while ascending.
func TestChannelFadeEngine_MidFade(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0)
	e := NewChannelFadeEngine(base)

	require.NoError(t, e.Set(1, ChannelChange{TargetValue: 200, FadeMs: 100}))
	e.Tick(base.Add(40 * time.Millisecond))

	v, err := e.Value(1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, v, byte(80))
	require.LessOrEqual(t, v, byte(81))
}

func TestChannelFadeEngine_FadeReachesTargetExactlyAtDuration(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0)
	e := NewChannelFadeEngine(base)

	require.NoError(t, e.Set(1, ChannelChange{TargetValue: 200, FadeMs: 100}))
	e.Tick(base.Add(100 * time.Millisecond))

	v, err := e.Value(1)
	require.NoError(t, err)
	require.Equal(t, byte(200), v)
}

func TestChannelFadeEngine_AscendingFadeNeverOvershoots(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0)
	e := NewChannelFadeEngine(base)

	require.NoError(t, e.Set(1, ChannelChange{TargetValue: 10, FadeMs: 100}))

	for ms := 0; ms <= 100; ms += 10 {
		e.Tick(base.Add(time.Duration(ms) * time.Millisecond))
		v, _ := e.Value(1)
		require.LessOrEqual(t, v, byte(10))
	}
}

func TestChannelFadeEngine_DescendingFadeNeverUndershoots(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0)
	e := NewChannelFadeEngine(base)

	require.NoError(t, e.Set(1, ChannelChange{TargetValue: 250}))
	require.NoError(t, e.Set(1, ChannelChange{TargetValue: 10, FadeMs: 100}))

	for ms := 0; ms <= 100; ms += 10 {
		e.Tick(base.Add(time.Duration(ms) * time.Millisecond))
		v, _ := e.Value(1)
		require.GreaterOrEqual(t, v, byte(10))
	}
}

func TestChannelFadeEngine_DescendingFadeUsesCeilRounding(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0)
	e := NewChannelFadeEngine(base)

	require.NoError(t, e.Set(1, ChannelChange{TargetValue: 255}))
	require.NoError(t, e.Set(1, ChannelChange{TargetValue: 0, FadeMs: 100}))

	e.Tick(base.Add(40 * time.Millisecond))
	v, err := e.Value(1)
	require.NoError(t, err)
	// Descending from 255 to 0 over 10 steps of 25.5 each; 4 steps elapsed
	// leaves 255 - 102 = 153, ceil-rounded.
	require.InDelta(t, 153, int(v), 1)
}

func TestChannelFadeEngine_MissedTicksConsumedAtOnce(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0)
	e := NewChannelFadeEngine(base)

	require.NoError(t, e.Set(1, ChannelChange{TargetValue: 200, FadeMs: 100}))
	// Skip straight to completion without intermediate ticks.
	e.Tick(base.Add(250 * time.Millisecond))

	v, err := e.Value(1)
	require.NoError(t, err)
	require.Equal(t, byte(200), v)
}

func TestChannelFadeEngine_InvalidChannel(t *testing.T) {
	t.Parallel()

	e := NewChannelFadeEngine(time.Unix(0, 0))
	require.Error(t, e.Set(0, ChannelChange{TargetValue: 1}))
	require.Error(t, e.Set(513, ChannelChange{TargetValue: 1}))

	_, err := e.Value(0)
	require.Error(t, err)
}

func TestChannelFadeEngine_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	e := NewChannelFadeEngine(time.Unix(0, 0))
	require.NoError(t, e.Set(5, ChannelChange{TargetValue: 99}))

	snap := e.Snapshot()
	require.Equal(t, byte(99), snap[4])

	require.NoError(t, e.Set(5, ChannelChange{TargetValue: 1}))
	require.Equal(t, byte(99), snap[4], "snapshot must not observe later mutation")
}
