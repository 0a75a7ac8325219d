package fx

import (
	"testing"
	"time"

	"github.com/robmorgan/halofx/distribution"
	"github.com/robmorgan/halofx/dmx"
	"github.com/robmorgan/halofx/effect"
	"github.com/robmorgan/halofx/fixture"
	"github.com/robmorgan/halofx/rhythm"
	"github.com/robmorgan/halofx/transaction"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, universes ...dmx.Universe) (*FxEngine, *fixture.Registry, map[dmx.Universe]*dmx.ChannelFadeEngine) {
	t.Helper()
	engines := make(map[dmx.Universe]*dmx.ChannelFadeEngine, len(universes))
	for _, u := range universes {
		engines[u] = dmx.NewChannelFadeEngine(time.Unix(0, 0))
	}
	registry := fixture.NewRegistry()
	resolve := transaction.NewMapResolver(engines)
	return New(registry, resolve), registry, engines
}

func dimmerFixture(key string, u dmx.Universe, channel int) *fixture.Fixture {
	f := fixture.New(key, key, "generic")
	f.Sliders[fixture.PropertyDimmer] = fixture.NewSlider(fixture.NewBinding(u, channel))
	return f
}

func TestProcessTick_SingleInstanceOverride(t *testing.T) {
	t.Parallel()

	u, _ := dmx.NewUniverse(0, 1)
	e, registry, engines := newTestEngine(t, u)
	f := dimmerFixture("par1", u, 1)
	registry.AddFixture(f)

	id, err := e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(200),
		Target:       FixtureRef("par1"),
		Property:     fixture.PropertyDimmer,
		BlendMode:    Override,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, e.ProcessTick(rhythm.Tick{Index: 0}))

	v, err := engines[u].Value(1)
	require.NoError(t, err)
	require.Equal(t, byte(200), v)
}

// TestProcessTick_MaxBlendIsRecomputedEachTick covers testable property #2:
// a MAX blend of two effects depends only on the current tick's outputs, not
// any prior tick's accumulated value.
func TestProcessTick_MaxBlendIsRecomputedEachTick(t *testing.T) {
	t.Parallel()

	u, _ := dmx.NewUniverse(0, 1)
	e, registry, engines := newTestEngine(t, u)
	f := dimmerFixture("par1", u, 1)
	registry.AddFixture(f)

	_, err := e.AddEffect(AddEffectRequest{
		Effect:       effect.SineWave(0, 255),
		Target:       FixtureRef("par1"),
		Property:     fixture.PropertyDimmer,
		BlendMode:    Max,
		BeatDivision: 1,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)

	_, err = e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(10),
		Target:       FixtureRef("par1"),
		Property:     fixture.PropertyDimmer,
		BlendMode:    Max,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)

	for tick := uint64(0); tick < rhythm.TicksPerBeat; tick++ {
		require.NoError(t, e.ProcessTick(rhythm.Tick{Index: tick}))
		v, err := engines[u].Value(1)
		require.NoError(t, err)

		phase := float64(tick) / float64(rhythm.TicksPerBeat)
		sine := effect.SineWave(0, 255).Calculate(phase, effect.EffectContext{}).Slider
		want := sine
		if 10 > want {
			want = 10
		}
		require.Equalf(t, want, v, "tick %d", tick)
	}
}

// TestProcessTick_LeavesLastValueAfterInstanceRemoved ensures that once the
// only instance touching a channel is removed, the engine stages nothing for
// that channel: the neutral reset covers only channels a running instance
// touches this tick, so the last committed value stays in the fade engine.
func TestProcessTick_LeavesLastValueAfterInstanceRemoved(t *testing.T) {
	t.Parallel()

	u, _ := dmx.NewUniverse(0, 1)
	e, registry, engines := newTestEngine(t, u)
	f := dimmerFixture("par1", u, 1)
	registry.AddFixture(f)

	id, err := e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(200),
		Target:       FixtureRef("par1"),
		Property:     fixture.PropertyDimmer,
		BlendMode:    Override,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)
	require.NoError(t, e.ProcessTick(rhythm.Tick{Index: 0}))
	v, _ := engines[u].Value(1)
	require.Equal(t, byte(200), v)

	e.RemoveEffect(id)
	require.NoError(t, e.ProcessTick(rhythm.Tick{Index: 1}))
	// No running instance touches channel 1 this tick, so nothing is staged
	// and the last committed value is left standing rather than reset.
	v, _ = engines[u].Value(1)
	require.Equal(t, byte(200), v)
}

// TestProcessTick_ChaseAcrossFourFixtures covers scenario S3: four fixtures
// in a LINEAR group running a Pulse effect produce a disjoint, sequential
// chase rather than all firing in unison.
func TestProcessTick_ChaseAcrossFourFixtures(t *testing.T) {
	t.Parallel()

	u, _ := dmx.NewUniverse(0, 1)
	e, registry, engines := newTestEngine(t, u)

	g := fixture.NewGroup[*fixture.Fixture]("chase")
	for i := 1; i <= 4; i++ {
		f := dimmerFixture("par"+string(rune('0'+i)), u, i)
		registry.AddFixture(f)
		g.AddMember(f, fixture.MemberOptions{})
	}
	registry.AddGroup(g)

	_, err := e.AddEffect(AddEffectRequest{
		Effect:       effect.Pulse(0, 255, 0.5, 0.25),
		Target:       GroupRef("chase"),
		Property:     fixture.PropertyDimmer,
		BlendMode:    Override,
		BeatDivision: 1,
		Distribution: distribution.Linear(),
	})
	require.NoError(t, err)

	activeCounts := make([]int, 4)
	for tick := uint64(0); tick < rhythm.TicksPerBeat*4; tick++ {
		require.NoError(t, e.ProcessTick(rhythm.Tick{Index: tick}))
		for i := 0; i < 4; i++ {
			v, err := engines[u].Value(i + 1)
			require.NoError(t, err)
			if v > 0 {
				activeCounts[i]++
			}
		}
	}

	for i, count := range activeCounts {
		require.Greaterf(t, count, 0, "fixture %d never active", i)
	}
}

// TestProcessTick_AtomicAcrossUniverses covers scenario S5: a single flush
// commits every staged channel across multiple universes together.
func TestProcessTick_AtomicAcrossUniverses(t *testing.T) {
	t.Parallel()

	u1, _ := dmx.NewUniverse(0, 1)
	u2, _ := dmx.NewUniverse(0, 2)
	e, registry, engines := newTestEngine(t, u1, u2)

	f1 := dimmerFixture("par1", u1, 1)
	f2 := dimmerFixture("par2", u2, 1)
	registry.AddFixture(f1)
	registry.AddFixture(f2)

	_, err := e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(50),
		Target:       FixtureRef("par1"),
		Property:     fixture.PropertyDimmer,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)
	_, err = e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(99),
		Target:       FixtureRef("par2"),
		Property:     fixture.PropertyDimmer,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)

	require.NoError(t, e.ProcessTick(rhythm.Tick{Index: 0}))

	v1, _ := engines[u1].Value(1)
	v2, _ := engines[u2].Value(1)
	require.Equal(t, byte(50), v1)
	require.Equal(t, byte(99), v2)
}

type spyTransmitSignal struct {
	requests int
}

func (s *spyTransmitSignal) RequestTransmit() {
	s.requests++
}

func TestProcessTick_SignalsEachTouchedUniverseOnce(t *testing.T) {
	t.Parallel()

	u1, _ := dmx.NewUniverse(0, 1)
	u2, _ := dmx.NewUniverse(0, 2)
	e, registry, _ := newTestEngine(t, u1, u2)

	registry.AddFixture(dimmerFixture("par1", u1, 1))
	registry.AddFixture(dimmerFixture("par2", u2, 1))

	s1, s2 := &spyTransmitSignal{}, &spyTransmitSignal{}
	e.SetTransmitResolver(func(u dmx.Universe) (transaction.TransmitSignal, bool) {
		switch u {
		case u1:
			return s1, true
		case u2:
			return s2, true
		default:
			return nil, false
		}
	})

	_, err := e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(50),
		Target:       FixtureRef("par1"),
		Property:     fixture.PropertyDimmer,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)
	_, err = e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(99),
		Target:       FixtureRef("par2"),
		Property:     fixture.PropertyDimmer,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)

	require.NoError(t, e.ProcessTick(rhythm.Tick{Index: 0}))

	require.Equal(t, 1, s1.requests)
	require.Equal(t, 1, s2.requests)
}

func TestAddEffect_RejectsUnknownFixture(t *testing.T) {
	t.Parallel()
	e, _, _ := newTestEngine(t)
	_, err := e.AddEffect(AddEffectRequest{
		Effect:   effect.StaticValue(1),
		Target:   FixtureRef("missing"),
		Property: fixture.PropertyDimmer,
	})
	require.Error(t, err)
}

func TestAddEffect_RejectsUnknownProperty(t *testing.T) {
	t.Parallel()
	u, _ := dmx.NewUniverse(0, 1)
	e, registry, _ := newTestEngine(t, u)
	registry.AddFixture(dimmerFixture("par1", u, 1))

	_, err := e.AddEffect(AddEffectRequest{
		Effect:   effect.StaticColour(effect.RGB{R: 255}),
		Target:   FixtureRef("par1"),
		Property: "colour",
	})
	require.Error(t, err)
}

func TestPauseResume_PreservesStartEpochTick(t *testing.T) {
	t.Parallel()
	u, _ := dmx.NewUniverse(0, 1)
	e, registry, _ := newTestEngine(t, u)
	registry.AddFixture(dimmerFixture("par1", u, 1))

	id, err := e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(5),
		Target:       FixtureRef("par1"),
		Property:     fixture.PropertyDimmer,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)

	before := e.Snapshot()[0].StartEpochTick

	require.NoError(t, e.Pause(id))
	require.NoError(t, e.ProcessTick(rhythm.Tick{Index: 5}))
	require.NoError(t, e.Resume(id))

	after := e.Snapshot()[0].StartEpochTick
	require.Equal(t, before, after)
}

func TestGetEffectsForGroup_ExcludesFixtureTargetedInstances(t *testing.T) {
	t.Parallel()
	u, _ := dmx.NewUniverse(0, 1)
	e, registry, _ := newTestEngine(t, u)
	f := dimmerFixture("par1", u, 1)
	registry.AddFixture(f)
	g := fixture.NewGroup[*fixture.Fixture]("grp")
	g.AddMember(f, fixture.MemberOptions{})
	registry.AddGroup(g)

	_, err := e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(5),
		Target:       FixtureRef("par1"),
		Property:     fixture.PropertyDimmer,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)

	require.Empty(t, e.GetEffectsForGroup("grp"))
	require.Len(t, e.GetEffectsForFixture("par1"), 1)
}

func TestRemoveEffectsForGroup_LeavesFixtureTargetedInstances(t *testing.T) {
	t.Parallel()
	u, _ := dmx.NewUniverse(0, 1)
	e, registry, _ := newTestEngine(t, u)
	f := dimmerFixture("par1", u, 1)
	registry.AddFixture(f)
	g := fixture.NewGroup[*fixture.Fixture]("grp")
	g.AddMember(f, fixture.MemberOptions{})
	registry.AddGroup(g)

	id, err := e.AddEffect(AddEffectRequest{
		Effect:       effect.StaticValue(5),
		Target:       FixtureRef("par1"),
		Property:     fixture.PropertyDimmer,
		Distribution: distribution.Unified(),
	})
	require.NoError(t, err)

	require.Equal(t, 0, e.RemoveEffectsForGroup("grp"))
	require.Len(t, e.Snapshot(), 1)

	require.Equal(t, 1, e.RemoveEffectsForFixture("par1"))
	require.Empty(t, e.Snapshot())
	_ = id
}
