// Package descriptor defines the 8-byte per-window acoustic descriptor
// and the window analyzer that produces one from a slab of envelope
// energies (spec §3, §4.2).
package descriptor

// Size is the on-disk/in-memory size of a Record in bytes.
const Size = 8

// Record is the fixed 8-byte per-window descriptor. Field order is the
// on-disk layout (spec §3, §6): no padding, no header.
type Record struct {
	RangeDB     byte
	Cycles      byte
	LowThird    byte
	MidThird    byte
	HighThird   byte
	AttackRatio byte
	PeakJitter  byte
	Spare       byte
}

// Bytes encodes the record into its 8-byte wire form.
func (r Record) Bytes() [Size]byte {
	return [Size]byte{
		r.RangeDB, r.Cycles, r.LowThird, r.MidThird,
		r.HighThird, r.AttackRatio, r.PeakJitter, r.Spare,
	}
}

// FromBytes decodes a record from its 8-byte wire form.
func FromBytes(b [Size]byte) Record {
	return Record{
		RangeDB:     b[0],
		Cycles:      b[1],
		LowThird:    b[2],
		MidThird:    b[3],
		HighThird:   b[4],
		AttackRatio: b[5],
		PeakJitter:  b[6],
		Spare:       b[7],
	}
}
