// Command unidump prints the patched channel layout and the current
// materialized frame for one universe of the demo rig, without needing a
// live console attached. Useful for sanity-checking a patch before pointing
// fxdemo at real hardware.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/robmorgan/halofx/config"
	"github.com/robmorgan/halofx/dmx"
)

func main() {
	subnet := flag.Int("subnet", 0, "universe subnet")
	univ := flag.Int("universe", 1, "universe number")
	configPath := flag.String("config", "", "path to a YAML config file (optional, overlays the demo rig defaults)")
	flag.Parse()

	cfg := config.NewDefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	target, err := dmx.NewUniverse(*subnet, *univ)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid universe: %v\n", err)
		os.Exit(1)
	}

	patched := make([]config.PatchedFixture, 0)
	for _, p := range cfg.Patch {
		if p.Universe == target {
			patched = append(patched, p)
		}
	}
	sort.Slice(patched, func(i, j int) bool { return patched[i].BaseAddress < patched[j].BaseAddress })

	fmt.Printf("universe %s: %d patched fixture(s)\n", target, len(patched))
	for _, p := range patched {
		fmt.Printf("  %-24s base=%-4d profile=%s\n", p.Key, p.BaseAddress, p.ProfileKey)
	}

	engine := dmx.NewChannelFadeEngine(time.Now())
	frame := engine.Snapshot()
	fmt.Printf("\nchannel values (%d total, showing non-zero only):\n", dmx.ChannelCount)
	any := false
	for i, v := range frame {
		if v != 0 {
			fmt.Printf("  ch %3d = %3d\n", i+1, v)
			any = true
		}
	}
	if !any {
		fmt.Println("  (all channels at 0 -- no effects have run against this engine)")
	}
}
