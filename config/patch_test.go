package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPatch_AddressesDoNotOverlap(t *testing.T) {
	t.Parallel()

	profiles := DefaultProfiles()
	patch := DefaultPatch()

	type span struct {
		start, end int
	}
	spans := make([]span, 0, len(patch))
	for _, p := range patch {
		width := channelWidth(profiles[p.ProfileKey])
		spans = append(spans, span{start: p.BaseAddress, end: p.BaseAddress + width - 1})
	}

	for i := range spans {
		for j := range spans {
			if i == j {
				continue
			}
			overlap := spans[i].start <= spans[j].end && spans[j].start <= spans[i].end
			require.Falsef(t, overlap, "patch entries %d and %d overlap: %+v vs %+v", i, j, spans[i], spans[j])
		}
	}
}

func channelWidth(p FixtureProfile) int {
	max := 0
	note := func(offset int) {
		if offset+1 > max {
			max = offset + 1
		}
	}
	if p.Dimmer != nil {
		note(p.Dimmer.Offset)
	}
	if p.UV != nil {
		note(p.UV.Offset)
	}
	if p.Colour != nil {
		note(p.Colour.Red.Offset)
		note(p.Colour.Green.Offset)
		note(p.Colour.Blue.Offset)
	}
	if p.Position != nil {
		note(p.Position.Pan.Offset)
		note(p.Position.Tilt.Offset)
	}
	if p.Strobe != nil {
		note(p.Strobe.Channel.Offset)
	}
	for _, s := range p.Sliders {
		note(s.Offset)
	}
	if p.ElementCount > 0 {
		note(p.ElementStride*(p.ElementCount-1) + 2)
	}
	return max
}

func TestBuildRegistry_RejectsUnknownProfileKey(t *testing.T) {
	t.Parallel()

	_, err := BuildRegistry(map[string]FixtureProfile{}, DefaultPatch())
	require.Error(t, err)
}

func TestBuildRegistry_GroupsDemoRigByProfile(t *testing.T) {
	t.Parallel()

	registry, err := BuildRegistry(DefaultProfiles(), DefaultPatch())
	require.NoError(t, err)

	for _, name := range []string{"pars", "wash", "spots", "beams"} {
		_, ok := registry.Group(name)
		require.Truef(t, ok, "missing demo group %q", name)
	}
}
