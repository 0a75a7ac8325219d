package config

import "github.com/robmorgan/halofx/dmx"

// TransmitterTarget describes one universe's Art-Net destination: where to
// send frames, and whether the transmitter should force a refresh frame on
// dmx.RefreshInterval even when nothing changed (fixtures that forget their
// last DMX value without periodic retransmission need this).
type TransmitterTarget struct {
	Universe     dmx.Universe `yaml:"universe"`
	DestAddr     string       `yaml:"destAddr"`
	NeedsRefresh bool         `yaml:"needsRefresh"`
}

// DefaultTransmitterTargets returns one broadcast target per distinct
// universe patch touches, in patch order.
func DefaultTransmitterTargets(patch []PatchedFixture) []TransmitterTarget {
	seen := make(map[dmx.Universe]bool, len(patch))
	var out []TransmitterTarget
	for _, p := range patch {
		if seen[p.Universe] {
			continue
		}
		seen[p.Universe] = true
		out = append(out, TransmitterTarget{
			Universe:     p.Universe,
			DestAddr:     "255.255.255.255:6454",
			NeedsRefresh: true,
		})
	}
	return out
}
