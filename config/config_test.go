package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robmorgan/halofx/dmx"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_WiresDemoRig(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	require.Equal(t, 120.0, cfg.BPM)
	require.NotEmpty(t, cfg.Profiles)
	require.NotEmpty(t, cfg.Patch)
	require.NotNil(t, cfg.Logger)
}

func TestNewDefaultConfig_BuildRegistryPatchesEveryFixture(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	registry, err := cfg.BuildRegistry()
	require.NoError(t, err)

	for _, p := range cfg.Patch {
		_, ok := registry.Fixture(p.Key)
		require.Truef(t, ok, "fixture %q not patched", p.Key)
	}

	_, ok := registry.Group("pars")
	require.True(t, ok)
}

func TestLoadConfig_OverlaysOntoDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "halofx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bpm: 128\nrestAddr: \":9090\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 128.0, cfg.BPM)
	require.Equal(t, ":9090", cfg.RestAddr)
	require.Equal(t, ":8081", cfg.WebSocketAddr, "unset field keeps the default")
	require.NotEmpty(t, cfg.Profiles, "patch/profile wiring still comes from defaults")
}

func TestLoadConfig_MissingFileReturnsError(t *testing.T) {
	t.Parallel()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_LoadsFullRigFromYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rig.yaml")
	yamlContent := `
bpm: 90
profiles:
  simplePar:
    name: simplePar
    dimmer:
      offset: 0
patch:
  - key: house1
    displayName: House Left
    profileKey: simplePar
    universe:
      subnet: 0
      universe: 5
    baseAddress: 1
groups:
  - name: house
    members: [house1]
transmitters:
  - universe:
      subnet: 0
      universe: 5
    destAddr: "10.0.0.50:6454"
    needsRefresh: false
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 90.0, cfg.BPM)
	require.Len(t, cfg.Patch, 1)
	require.Equal(t, "house1", cfg.Patch[0].Key)
	require.Len(t, cfg.Transmitters, 1)
	require.Equal(t, "10.0.0.50:6454", cfg.Transmitters[0].DestAddr)
	require.False(t, cfg.Transmitters[0].NeedsRefresh)

	registry, err := cfg.BuildRegistry()
	require.NoError(t, err)
	_, ok := registry.Fixture("house1")
	require.True(t, ok)
	g, ok := registry.Group("house")
	require.True(t, ok)
	require.Len(t, g.AllMembers(), 1)
}

func TestLoadConfig_PatchWithoutTransmittersGetsDefaultBroadcastTargets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rig.yaml")
	yamlContent := `
profiles:
  simplePar:
    name: simplePar
    dimmer:
      offset: 0
patch:
  - key: house1
    displayName: House Left
    profileKey: simplePar
    universe:
      subnet: 0
      universe: 7
    baseAddress: 1
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Transmitters, 1)
	require.Equal(t, 7, cfg.Transmitters[0].Universe.Universe)
	require.Equal(t, "255.255.255.255:6454", cfg.Transmitters[0].DestAddr)
	require.True(t, cfg.Transmitters[0].NeedsRefresh)
}

func TestBuildRegistryWithGroups_RejectsUnpatchedMember(t *testing.T) {
	t.Parallel()

	_, err := BuildRegistryWithGroups(DefaultProfiles(), DefaultPatch(), []GroupSpec{
		{Name: "bogus", Members: []string{"does-not-exist"}},
	})
	require.Error(t, err)
}

func TestDefaultTransmitterTargets_OneBroadcastPerDistinctUniverse(t *testing.T) {
	t.Parallel()

	patch := DefaultPatch()
	targets := DefaultTransmitterTargets(patch)

	seen := make(map[dmx.Universe]bool)
	for _, target := range targets {
		require.Falsef(t, seen[target.Universe], "universe %s listed twice", target.Universe)
		seen[target.Universe] = true
		require.Equal(t, "255.255.255.255:6454", target.DestAddr)
		require.True(t, target.NeedsRefresh)
	}
	for _, p := range patch {
		require.True(t, seen[p.Universe], "patch universe %s missing a transmitter target", p.Universe)
	}
}
