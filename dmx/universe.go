// Package dmx implements the per-universe channel model: addressing, the
// channel fade engine, and the Art-Net universe transmitter.
package dmx

import "fmt"

// ChannelCount is the number of channels in a DMX512 universe.
const ChannelCount = 512

// Universe identifies a single 512-channel DMX output space by subnet and
// universe number, each in [0,15]. Universe values are immutable.
type Universe struct {
	Subnet   int
	Universe int
}

// NewUniverse validates and returns a Universe.
func NewUniverse(subnet, universe int) (Universe, error) {
	if subnet < 0 || subnet > 15 {
		return Universe{}, fmt.Errorf("dmx: subnet %d out of range [0,15]", subnet)
	}
	if universe < 0 || universe > 15 {
		return Universe{}, fmt.Errorf("dmx: universe %d out of range [0,15]", universe)
	}
	return Universe{Subnet: subnet, Universe: universe}, nil
}

func (u Universe) String() string {
	return fmt.Sprintf("%d.%d", u.Subnet, u.Universe)
}

// ValidateChannel checks that a 1-indexed DMX channel number is in range.
func ValidateChannel(channel int) error {
	if channel < 1 || channel > ChannelCount {
		return fmt.Errorf("dmx: channel %d out of range [1,%d]", channel, ChannelCount)
	}
	return nil
}

// ValidateValue checks that a DMX byte value is in range.
func ValidateValue(value int) error {
	if value < 0 || value > 255 {
		return fmt.Errorf("dmx: value %d out of range [0,255]", value)
	}
	return nil
}
