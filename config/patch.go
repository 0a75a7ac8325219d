package config

import (
	"fmt"

	"github.com/robmorgan/halofx/dmx"
	"github.com/robmorgan/halofx/fixture"
)

// PatchedFixture binds one fixture key to a profile and a DMX address.
type PatchedFixture struct {
	Key         string       `yaml:"key"`
	DisplayName string       `yaml:"displayName"`
	ProfileKey  string       `yaml:"profileKey"`
	Universe    dmx.Universe `yaml:"universe"`
	BaseAddress int          `yaml:"baseAddress"`
}

// GroupSpec names an explicit group and the fixture keys directly in it.
// Sub-groups are not expressible from YAML; the demo rig's groups are
// always flat, and so is every group a config file can describe.
type GroupSpec struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// DefaultPatch lays out the demo rig: front-middle and front-top pars,
// uplight pars, beam bars, spots and washes, all on universe 0.1.
func DefaultPatch() []PatchedFixture {
	u, _ := dmx.NewUniverse(0, 1)

	patch := make([]PatchedFixture, 0, 16)
	patch = append(patch, patchFrontMiddlePars(u)...)
	patch = append(patch, patchFrontTopPars(u)...)
	patch = append(patch, patchUplightPars(u)...)
	patch = append(patch, patchWashLights(u)...)
	patch = append(patch, patchBeamBars(u)...)
	patch = append(patch, patchSpotLights(u)...)
	return patch
}

func patchFrontMiddlePars(u dmx.Universe) []PatchedFixture {
	return []PatchedFixture{
		{Key: "left_middle_par", DisplayName: "Left Middle PAR", ProfileKey: "shehds-par", Universe: u, BaseAddress: 1},
		{Key: "right_middle_par", DisplayName: "Right Middle PAR", ProfileKey: "shehds-par", Universe: u, BaseAddress: 9},
	}
}

func patchFrontTopPars(u dmx.Universe) []PatchedFixture {
	return []PatchedFixture{
		{Key: "left_top_par", DisplayName: "Left Top PAR", ProfileKey: "shehds-par", Universe: u, BaseAddress: 17},
		{Key: "right_top_par", DisplayName: "Right Top PAR", ProfileKey: "shehds-par", Universe: u, BaseAddress: 25},
	}
}

func patchUplightPars(u dmx.Universe) []PatchedFixture {
	return []PatchedFixture{
		{Key: "left_uplight_par", DisplayName: "Left Uplight PAR", ProfileKey: "shehds-par", Universe: u, BaseAddress: 33},
		{Key: "right_uplight_par", DisplayName: "Right Uplight PAR", ProfileKey: "shehds-par", Universe: u, BaseAddress: 41},
	}
}

func patchWashLights(u dmx.Universe) []PatchedFixture {
	return []PatchedFixture{
		{Key: "left_wash", DisplayName: "Left Wash", ProfileKey: "shehds-wash", Universe: u, BaseAddress: 55},
		{Key: "right_wash", DisplayName: "Right Wash", ProfileKey: "shehds-wash", Universe: u, BaseAddress: 65},
	}
}

func patchBeamBars(u dmx.Universe) []PatchedFixture {
	return []PatchedFixture{
		{Key: "left_beam_bar", DisplayName: "Left Beam Bar", ProfileKey: "shehds-beam-bar-8px", Universe: u, BaseAddress: 105},
		{Key: "right_beam_bar", DisplayName: "Right Beam Bar", ProfileKey: "shehds-beam-bar-8px", Universe: u, BaseAddress: 137},
	}
}

func patchSpotLights(u dmx.Universe) []PatchedFixture {
	return []PatchedFixture{
		{Key: "left_spot", DisplayName: "Left Spot", ProfileKey: "shehds-spot", Universe: u, BaseAddress: 169},
		{Key: "right_spot", DisplayName: "Right Spot", ProfileKey: "shehds-spot", Universe: u, BaseAddress: 175},
	}
}

// BuildRegistry builds every patched fixture from profiles and registers it
// into a fresh Registry, then wires the default demo groups (pars, wash,
// spots, beams) over whatever patched fixtures exist for each profile.
func BuildRegistry(profiles map[string]FixtureProfile, patch []PatchedFixture) (*fixture.Registry, error) {
	registry, err := buildFixtures(profiles, patch)
	if err != nil {
		return nil, err
	}
	buildDemoGroups(registry, patch)
	return registry, nil
}

// BuildRegistryWithGroups is BuildRegistry but wires the caller's explicit
// group definitions instead of the automatic group-by-profile demo wiring,
// for a config file that patches fixtures the demo groups don't know about.
func BuildRegistryWithGroups(profiles map[string]FixtureProfile, patch []PatchedFixture, groups []GroupSpec) (*fixture.Registry, error) {
	registry, err := buildFixtures(profiles, patch)
	if err != nil {
		return nil, err
	}

	for _, gs := range groups {
		g := fixture.NewGroup[*fixture.Fixture](gs.Name)
		for _, key := range gs.Members {
			f, ok := registry.Fixture(key)
			if !ok {
				return nil, fmt.Errorf("config: group %q references unpatched fixture %q", gs.Name, key)
			}
			g.AddMember(f, fixture.MemberOptions{})
		}
		registry.AddGroup(g)
	}
	return registry, nil
}

func buildFixtures(profiles map[string]FixtureProfile, patch []PatchedFixture) (*fixture.Registry, error) {
	registry := fixture.NewRegistry()

	for _, p := range patch {
		profile, ok := profiles[p.ProfileKey]
		if !ok {
			return nil, fmt.Errorf("config: patched fixture %q references unknown profile %q", p.Key, p.ProfileKey)
		}
		f, err := profile.Build(p.Key, p.DisplayName, p.Universe, p.BaseAddress)
		if err != nil {
			return nil, fmt.Errorf("config: building fixture %q: %w", p.Key, err)
		}
		registry.AddFixture(f)
	}
	return registry, nil
}

func buildDemoGroups(registry *fixture.Registry, patch []PatchedFixture) {
	byProfile := make(map[string][]string)
	for _, p := range patch {
		byProfile[p.ProfileKey] = append(byProfile[p.ProfileKey], p.Key)
	}

	addGroup := func(name string, keys []string) {
		if len(keys) == 0 {
			return
		}
		g := fixture.NewGroup[*fixture.Fixture](name)
		for _, key := range keys {
			f, ok := registry.Fixture(key)
			if !ok {
				continue
			}
			g.AddMember(f, fixture.MemberOptions{})
		}
		registry.AddGroup(g)
	}

	addGroup("pars", byProfile["shehds-par"])
	addGroup("wash", byProfile["shehds-wash"])
	addGroup("spots", byProfile["shehds-spot"])
	addGroup("beams", byProfile["shehds-beam-bar-8px"])
}
