// Package gpr implements the 32-entry 64-bit integer register file.
package gpr

// File is the RV64 integer register file. x0 is hardwired to zero: writes
// to index 0 are silently discarded and reads always return 0.
//
// File additionally keeps a single-slot "last write" observation, read
// and cleared by TakeLastWrite. Hart.Step neither reads nor clears it: the
// hart's retirement record takes the destination write from the
// executor's own result.
type File struct {
	regs [32]uint64

	lastValid bool
	lastIndex uint8
	lastValue uint64
}

// Names are the ABI mnemonics for register indices 0..31.
var Names = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// Read returns the value at index, or 0 for index 0.
func (f *File) Read(index uint8) uint64 {
	if index == 0 {
		return 0
	}
	return f.regs[index&31]
}

// Write stores value at index, discarding writes to index 0, and records
// the write in the last-write slot.
func (f *File) Write(index uint8, value uint64) {
	index &= 31
	if index != 0 {
		f.regs[index] = value
	}
	f.lastValid = true
	f.lastIndex = index
	f.lastValue = value
}

// TakeLastWrite returns the most recent write observed since the previous
// call (or since Reset), and clears it. ok is false if no write occurred
// this cycle, or if the write was a discarded write to x0.
func (f *File) TakeLastWrite() (index uint8, value uint64, ok bool) {
	index, value, ok = f.lastIndex, f.lastValue, f.lastValid && f.lastIndex != 0
	f.lastValid = false
	return index, value, ok
}

// ClearObservation resets the last-write slot without touching register
// contents.
func (f *File) ClearObservation() {
	f.lastValid = false
}

// Reset clears every register and the observation slot.
func (f *File) Reset() {
	f.regs = [32]uint64{}
	f.lastValid = false
}
