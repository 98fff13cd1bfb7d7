package j1939

// J1939 packs its parameter group number into the 29-bit extended CAN
// identifier. For the PDU2 global groups used here the PGN occupies bits
// 8-25, the source address the low byte and the priority the top 3 bits.
const (
	// PGNVehiclePosition is PGN 65267, the latitude/longitude broadcast.
	PGNVehiclePosition uint32 = 0xFEF3

	pgnMask     = 0x3FFFF
	pgnShift    = 8
	sourceMask  = 0xFF
	prioShift   = 26
	prioMask    = 0x7
	prioDefault = 6
)

// PGN extracts the parameter group number from an extended CAN identifier.
func PGN(id uint32) uint32 {
	return (id >> pgnShift) & pgnMask
}

// SourceAddress extracts the sending node address from an extended CAN
// identifier.
func SourceAddress(id uint32) uint8 {
	return uint8(id & sourceMask)
}

// Priority extracts the 3-bit message priority from an extended CAN
// identifier.
func Priority(id uint32) uint8 {
	return uint8((id >> prioShift) & prioMask)
}

// positionID builds the identifier a node uses to broadcast PGN 65267 at the
// default priority.
func positionID(source uint8) uint32 {
	return prioDefault<<prioShift | PGNVehiclePosition<<pgnShift | uint32(source)
}
