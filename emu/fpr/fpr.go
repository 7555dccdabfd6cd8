// Package fpr implements the 32-entry double-precision floating-point
// register file used by the F and D extensions.
package fpr

import "math"

// boxTag is the upper 32 bits every NaN-boxed single-precision value must
// carry so FCLASS.S, FMV.X.W and friends can tell a valid f32 payload from
// a non-canonical value (which the F extension treats as a quiet NaN).
const boxTag uint64 = 0xffff_ffff_0000_0000

// File is the RV64 FD floating-point register file. Unlike the GPR file
// there is no hardwired-zero register.
type File struct {
	regs [32]uint64
}

// ReadDouble returns the raw double-precision bit pattern at index.
func (f *File) ReadDouble(index uint8) uint64 {
	return f.regs[index&31]
}

// WriteDouble stores a raw double-precision bit pattern at index.
func (f *File) WriteDouble(index uint8, bits uint64) {
	f.regs[index&31] = bits
}

// ReadFloat64 returns the f64 value at index.
func (f *File) ReadFloat64(index uint8) float64 {
	return math.Float64frombits(f.regs[index&31])
}

// WriteFloat64 stores an f64 value at index.
func (f *File) WriteFloat64(index uint8, v float64) {
	f.regs[index&31] = math.Float64bits(v)
}

// ReadFloat32 unboxes a single-precision value at index. A value whose
// upper 32 bits are not all-ones is not canonically NaN-boxed and reads
// back as the canonical quiet NaN, per the F extension's NaN-boxing rule.
func (f *File) ReadFloat32(index uint8) float32 {
	bits := f.regs[index&31]
	if bits&boxTag != boxTag {
		return float32(math.NaN())
	}
	return math.Float32frombits(uint32(bits))
}

// WriteFloat32 stores a single-precision value at index, NaN-boxed into
// the full 64-bit slot (upper 32 bits set to all ones).
func (f *File) WriteFloat32(index uint8, v float32) {
	f.regs[index&31] = boxTag | uint64(math.Float32bits(v))
}

// Reset clears every register.
func (f *File) Reset() {
	f.regs = [32]uint64{}
}
