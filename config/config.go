package config

import (
	"fmt"
	"os"

	"github.com/robmorgan/halofx/fixture"
	"github.com/robmorgan/halofx/logging"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config carries the ambient, process-wide settings a halofx entry point
// needs: clock defaults, network listen addresses, and the patched
// fixtures/groups/transmitter targets used to build the Registry and wire
// Art-Net output.
type Config struct {
	Logger *logrus.Logger `yaml:"-"`

	BPM           float64 `yaml:"bpm"`
	RestAddr      string  `yaml:"restAddr"`
	WebSocketAddr string  `yaml:"wsAddr"`

	Profiles     map[string]FixtureProfile `yaml:"profiles"`
	Patch        []PatchedFixture          `yaml:"patch"`
	Groups       []GroupSpec               `yaml:"groups"`
	Transmitters []TransmitterTarget       `yaml:"transmitters"`
}

// NewDefaultConfig returns a Config wired to the built-in demo rig: the
// default fixture catalog patched per DefaultPatch, a 120 BPM master clock,
// and the conventional REST/WebSocket listen addresses.
func NewDefaultConfig() Config {
	patch := DefaultPatch()
	return Config{
		Logger:        logging.GetProjectLogger(),
		BPM:           120,
		RestAddr:      ":8080",
		WebSocketAddr: ":8081",
		Profiles:      DefaultProfiles(),
		Patch:         patch,
		Transmitters:  DefaultTransmitterTargets(patch),
	}
}

// yamlConfig mirrors every field a config file can set. Each is overlaid
// onto NewDefaultConfig's result independently, so a file that only sets
// bpm still gets the demo rig's profiles/patch/transmitters.
type yamlConfig struct {
	BPM           float64                   `yaml:"bpm"`
	RestAddr      string                    `yaml:"restAddr"`
	WebSocketAddr string                    `yaml:"wsAddr"`
	Profiles      map[string]FixtureProfile `yaml:"profiles"`
	Patch         []PatchedFixture          `yaml:"patch"`
	Groups        []GroupSpec               `yaml:"groups"`
	Transmitters  []TransmitterTarget       `yaml:"transmitters"`
}

// LoadConfig reads a YAML config file and overlays it onto the defaults
// returned by NewDefaultConfig. A missing or zero-valued field in the file
// leaves the matching default untouched. A file that patches its own rig
// without specifying transmitters gets one default broadcast target per
// universe its patch touches, rather than the demo rig's targets.
func LoadConfig(path string) (Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var loaded yamlConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if loaded.BPM > 0 {
		cfg.BPM = loaded.BPM
	}
	if loaded.RestAddr != "" {
		cfg.RestAddr = loaded.RestAddr
	}
	if loaded.WebSocketAddr != "" {
		cfg.WebSocketAddr = loaded.WebSocketAddr
	}
	if len(loaded.Profiles) > 0 {
		cfg.Profiles = loaded.Profiles
	}
	if len(loaded.Patch) > 0 {
		cfg.Patch = loaded.Patch
	}
	if len(loaded.Groups) > 0 {
		cfg.Groups = loaded.Groups
	}
	switch {
	case len(loaded.Transmitters) > 0:
		cfg.Transmitters = loaded.Transmitters
	case len(loaded.Patch) > 0:
		cfg.Transmitters = DefaultTransmitterTargets(cfg.Patch)
	}

	return cfg, nil
}

// BuildRegistry builds this config's Registry from its Profiles and Patch,
// wiring Groups explicitly when the config names any, or falling back to
// the automatic group-by-profile wiring otherwise.
func (c Config) BuildRegistry() (*fixture.Registry, error) {
	if len(c.Groups) > 0 {
		return BuildRegistryWithGroups(c.Profiles, c.Patch, c.Groups)
	}
	return BuildRegistry(c.Profiles, c.Patch)
}
