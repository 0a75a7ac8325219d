package effect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var red = RGB{R: 255}

func TestColourCycle_StepsThroughPalette(t *testing.T) {
	t.Parallel()

	palette := []RGB{{R: 255}, {G: 255}, {B: 255}}
	c := ColourCycle(palette, 0)
	require.Equal(t, palette[0], c.Calculate(0, EffectContext{}).Colour)
	require.Equal(t, palette[1], c.Calculate(1.0/3, EffectContext{}).Colour)
	require.Equal(t, palette[2], c.Calculate(2.0/3, EffectContext{}).Colour)
}

func TestRainbowCycle_SweepsFullHue(t *testing.T) {
	t.Parallel()

	r := RainbowCycle(1, 1)
	start := r.Calculate(0, EffectContext{}).Colour
	mid := r.Calculate(1.0/3, EffectContext{}).Colour
	require.NotEqual(t, start, mid)
}

func TestColourStrobe_OnRatio(t *testing.T) {
	t.Parallel()

	on := RGB{R: 255, G: 255, B: 255}
	off := RGB{}
	s := ColourStrobe(on, off, 0.2)
	require.Equal(t, on, s.Calculate(0.1, EffectContext{}).Colour)
	require.Equal(t, off, s.Calculate(0.5, EffectContext{}).Colour)
}

func TestColourFade_LinearFromTo(t *testing.T) {
	t.Parallel()

	from := RGB{}
	to := RGB{R: 255, G: 255, B: 255}
	f := ColourFade(from, to, false)
	require.Equal(t, from, f.Calculate(0, EffectContext{}).Colour)
	require.Equal(t, to, f.Calculate(1, EffectContext{}).Colour)
}

func TestColourFade_PingPongReturnsToFrom(t *testing.T) {
	t.Parallel()

	from := RGB{}
	to := RGB{R: 255, G: 255, B: 255}
	f := ColourFade(from, to, true)
	require.Equal(t, from, f.Calculate(0, EffectContext{}).Colour)
	require.Equal(t, to, f.Calculate(0.5, EffectContext{}).Colour)
	require.Equal(t, from, f.Calculate(1, EffectContext{}).Colour)
}

func TestColourFlicker_DeterministicPerPhase(t *testing.T) {
	t.Parallel()

	f := ColourFlicker(RGB{R: 200, G: 100, B: 50}, 0.3, 3)
	a := f.Calculate(0.37, EffectContext{})
	b := f.Calculate(0.37, EffectContext{})
	require.Equal(t, a.Colour, b.Colour)
}

// TestStaticColour_CoversCycleDisjointly covers scenario S6: a StaticColour
// on a 4-member LINEAR group is "red" for exactly 1/4 of the cycle per
// member, disjoint across members, totalling the full cycle.
func TestStaticColour_CoversCycleDisjointly(t *testing.T) {
	t.Parallel()

	const n = 4
	const samples = 4000
	sc := StaticColour(red)
	coverage := make([]int, samples)

	for member := 0; member < n; member++ {
		offset := float64(member) / float64(n)
		ctx := EffectContext{NumDistinctSlots: n, DistributionOffset: offset}
		activeCount := 0
		for s := 0; s < samples; s++ {
			clock := float64(s) / float64(samples)
			memberPhase := wrap01(clock - offset + 1)
			out := sc.Calculate(memberPhase, ctx)
			if out.Colour == red {
				coverage[s]++
				activeCount++
			}
		}
		require.InDelta(t, samples/n, activeCount, 2)
	}

	for s, count := range coverage {
		require.Equalf(t, 1, count, "sample %d covered by %d members, want exactly 1", s, count)
	}
}
