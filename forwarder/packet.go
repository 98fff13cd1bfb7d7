package forwarder

import (
	"unsafe"

	"github.com/jd3nn1s/j1939"
)

// Packets are a one-byte header followed by the little-endian payload.
type Header struct {
	Type uint8
}

const (
	TypePosition = 1
)

var maxPacketSize = int(unsafe.Sizeof(Header{}) + unsafe.Sizeof(j1939.Position{}))
