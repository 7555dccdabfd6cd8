// Package refdut is a software stand-in DUT: a second, independently
// structured RV64 interpreter satisfying dut.Adapter, used by this
// repository's own co-simulation driver tests in place of a Verilated RTL
// binary — the same role the teacher's emu/test_dev plays by standing in
// for real unit-record hardware in the channel tests, without wiring up
// actual peripheral hardware.
//
// A real Verilated core owns no memory of its own: it is handed
// instWord/dataWord by the harness each cycle and presents SRAM requests
// in return. This reference model is simpler, since it only needs to
// exercise the co-simulation driver's comparison logic: it keeps its own
// private bus (its "shadow" memory, set up by LoadImage to match the guest
// image) and executes one full instruction per Step call rather than
// spreading it across many SRAM-request cycles. instWord/dataWord are
// accepted to satisfy the interface but are not consulted.
package refdut

import (
	"github.com/Clo91eaf/hemu/dut"
	"github.com/Clo91eaf/hemu/emu/bus"
	"github.com/Clo91eaf/hemu/emu/device"
	"github.com/Clo91eaf/hemu/emu/hart"
)

// DUT wraps a private hart + bus pair.
type DUT struct {
	Hart *hart.Hart
	Bus  *bus.Bus

	resetCyclesRemaining int
}

// New creates a reference DUT with dramSize bytes of private memory.
func New(dramSize uint64) *DUT {
	b := bus.New(dramSize)
	return &DUT{Hart: hart.New(b, nil), Bus: b}
}

// NewWithBrokenSRA is identical to New except SRA/SRAI divergently behave
// as a logical right shift, for exercising the divergence-reporting path.
func NewWithBrokenSRA(dramSize uint64) *DUT {
	d := New(dramSize)
	d.Hart.SRAOverride = logicalShiftRight
	return d
}

// LoadImage copies data into the DUT's private shadow memory at offset,
// mirroring the ISS's own image load so both sides start identical.
func (d *DUT) LoadImage(offset uint64, data []byte) {
	d.Bus.LoadBytes(offset, data)
}

// Reset holds the DUT in reset for two cycles, per the documented minimum
// reset hold, then releases with PC at DRAM base.
func (d *DUT) Reset() {
	d.Hart.Reset()
	d.Hart.PC = device.DRAMBase
	d.resetCyclesRemaining = 2
}

// Step advances the reference DUT by what stands in for one RTL cycle. The
// first two calls after Reset only count down the reset hold and report no
// commit; the call that releases reset also executes and retires the first
// instruction, collapsing what a real multi-cycle core would spread across
// several Step calls into one, since this model has no separate fetch and
// execute cycle to simulate.
func (d *DUT) Step(instWord uint32, dataWord uint64) (dut.SRAMRequest, dut.DataSRAMRequest, dut.StoreObservation, dut.Retirement) {
	_, _ = instWord, dataWord
	if d.resetCyclesRemaining > 0 {
		d.resetCyclesRemaining--
		return dut.SRAMRequest{}, dut.DataSRAMRequest{}, dut.StoreObservation{}, dut.Retirement{}
	}

	d.Bus.ClearLastStore()
	pc := d.Hart.PC
	r := d.Hart.Step()

	store := dut.StoreObservation{}
	if addr, width, value, ok := d.Bus.LastStore(); ok {
		store = dut.StoreObservation{Valid: true, Addr: addr, WriteMask: byteMask(width), Data: value}
	}

	instReq := dut.SRAMRequest{Enable: true, Address: uint32(pc)}
	dataReq := dut.DataSRAMRequest{}
	if store.Valid {
		dataReq = dut.DataSRAMRequest{Enable: true, Address: uint32(store.Addr), WriteMask: store.WriteMask, WriteData: store.Data}
	}

	ret := dut.Retirement{Commit: true, PC: r.PC, RdIndex: r.RdIndex, RdValue: r.RdValue}
	return instReq, dataReq, store, ret
}

func logicalShiftRight(value uint64, shamt uint64) uint64 { return value >> shamt }

func byteMask(width int) uint8 {
	return uint8(1<<uint(width)) - 1
}
