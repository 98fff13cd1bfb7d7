package j1939

import (
	"encoding/binary"

	"github.com/brutella/can"
)

// PGN 65267 carries latitude and longitude as unsigned 32-bit little-endian
// values scaled by 1e-7 degree with a -210 degree offset, so the full byte
// range spans -210..+211.1 degrees.
const (
	positionFrameLength = 8
	positionResolution  = 1e-7
	positionOffset      = -210.0
)

func positionDegrees(raw uint32) float64 {
	return float64(raw)*positionResolution + positionOffset
}

// DecodePosition decodes a vehicle position frame. The second result is
// false when the frame is not a PGN 65267 broadcast or does not carry the
// full 8 data bytes; such frames are normal bus traffic and are simply not
// positions.
func DecodePosition(frm can.Frame) (Position, bool) {
	if PGN(frm.ID) != PGNVehiclePosition {
		return Position{}, false
	}
	if frm.Length != positionFrameLength {
		return Position{}, false
	}
	return Position{
		Latitude:  positionDegrees(binary.LittleEndian.Uint32(frm.Data[:4])),
		Longitude: positionDegrees(binary.LittleEndian.Uint32(frm.Data[4:8])),
	}, true
}

// PositionFrame encodes a position into the PGN 65267 frame a node with the
// given source address would broadcast. Coordinates outside the encodable
// range are clamped.
func PositionFrame(pos Position, source uint8) can.Frame {
	frm := can.Frame{
		ID:     positionID(source),
		Length: positionFrameLength,
	}
	binary.LittleEndian.PutUint32(frm.Data[:4], positionRaw(pos.Latitude))
	binary.LittleEndian.PutUint32(frm.Data[4:8], positionRaw(pos.Longitude))
	return frm
}

func positionRaw(degrees float64) uint32 {
	scaled := (degrees - positionOffset) / positionResolution
	if scaled < 0 {
		return 0
	}
	if scaled > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(scaled + 0.5)
}
