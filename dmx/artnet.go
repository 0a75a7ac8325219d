package dmx

import "encoding/binary"

// Art-Net wire constants. Adapted from the ArtDMX packet layout: an 18-byte
// header (ID, OpCode, protocol version, sequence, physical port, universe,
// data length) followed by up to 512 DMX data bytes.
const (
	artNetOpCodeDMX      uint16 = 0x5000
	artNetProtocolVer    uint16 = 14
	artNetHeaderSize            = 18
	artNetPacketSize            = artNetHeaderSize + ChannelCount
	// DefaultPort is the standard Art-Net UDP port.
	DefaultPort = 6454
)

var artNetID = []byte{'A', 'r', 't', '-', 'N', 'e', 't', 0x00}

// buildArtDMXPacket serializes one universe's 512 channels into an ArtDMX
// packet. universeIndex is the 0-based combined subnet/universe value that
// goes on the wire; sequence increments per packet (wrapping at 255) so
// receivers can detect out-of-order UDP delivery.
func buildArtDMXPacket(universeIndex uint16, channels [ChannelCount]byte, sequence byte) []byte {
	packet := make([]byte, artNetPacketSize)

	copy(packet[0:8], artNetID)
	binary.LittleEndian.PutUint16(packet[8:10], artNetOpCodeDMX)
	binary.BigEndian.PutUint16(packet[10:12], artNetProtocolVer)
	packet[12] = sequence
	packet[13] = 0 // physical input port
	binary.LittleEndian.PutUint16(packet[14:16], universeIndex)
	binary.BigEndian.PutUint16(packet[16:18], uint16(ChannelCount))

	copy(packet[artNetHeaderSize:], channels[:])

	return packet
}

// wireUniverseIndex combines subnet and universe into Art-Net's flat 0-based
// universe address (sub-net in the high nibble, universe in the low nibble).
func wireUniverseIndex(u Universe) uint16 {
	return uint16(u.Subnet<<4 | u.Universe)
}
