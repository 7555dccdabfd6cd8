// Package cosim implements the lock-step co-simulation driver: it alternates
// one ISS instruction against however many DUT cycles that instruction
// takes to commit, services the DUT's SRAM requests out of the ISS's own
// address space (instructions) and a private shadow bus (data), and
// compares the two sides' retirement records, stopping at the first
// mismatch the way a hardware difftest harness does.
package cosim

import (
	"fmt"

	"github.com/Clo91eaf/hemu/dut"
	"github.com/Clo91eaf/hemu/emu/bus"
	"github.com/Clo91eaf/hemu/emu/hart"
	"github.com/Clo91eaf/hemu/emu/mmu"
	"github.com/Clo91eaf/hemu/emu/system"
	"github.com/Clo91eaf/hemu/emu/trap"
)

// Divergence reports the first mismatch between the ISS and the DUT: the
// last record both sides agreed on, and the two conflicting records.
type Divergence struct {
	LastGood *hart.Retirement
	ISS      hart.Retirement
	DUT      dut.Retirement
}

func (d *Divergence) Error() string {
	return fmt.Sprintf("co-simulation divergence: iss=%+v dut=%+v (last good=%+v)", d.ISS, d.DUT, d.LastGood)
}

// DeadlockError reports that the DUT ran past its configured cycle budget
// without asserting commit for the instruction the ISS is waiting on.
type DeadlockError struct {
	Cycles int
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("dut deadlock: no commit after %d cycles", e.Cycles)
}

// Driver owns the ISS machine, a DUT adapter, and the DUT's private shadow
// bus (pre-loaded with the same guest image as the ISS).
type Driver struct {
	ISS    *system.System
	DUT    dut.Adapter
	Shadow *bus.Bus

	// DeadlockCycles bounds how many DUT cycles the driver will service
	// while waiting for one commit before giving up.
	DeadlockCycles int

	lastGood *hart.Retirement
}

// New creates a driver. shadow should already contain the same image the
// ISS was loaded with; Reset resets only the DUT.
func New(iss *system.System, d dut.Adapter, shadow *bus.Bus, deadlockCycles int) *Driver {
	return &Driver{ISS: iss, DUT: d, Shadow: shadow, DeadlockCycles: deadlockCycles}
}

// Reset releases the DUT's reset hold. The ISS and its image load are the
// caller's responsibility before constructing the Driver, since Reset here
// only concerns the DUT side of the pairing — resetting the ISS would
// otherwise wipe out an already-loaded guest image.
func (d *Driver) Reset() {
	d.DUT.Reset()
	d.lastGood = nil
}

// Step advances the ISS by exactly one retired instruction, then drives
// the DUT until it reports a matching commit, mirroring every DUT store
// into the shadow bus along the way. It returns the ISS retirement record
// on success, or a *Divergence / *DeadlockError describing why the run
// must stop.
func (d *Driver) Step() (hart.Retirement, error) {
	issRet := d.ISS.Step()

	var instWord uint32
	var dataWord uint64
	for cycle := 1; ; cycle++ {
		instReq, dataReq, store, dutRet := d.DUT.Step(instWord, dataWord)

		if instReq.Enable {
			instWord = d.fetchISSWord(uint64(instReq.Address))
		}
		if dataReq.Enable {
			w, _ := d.Shadow.Load(uint64(dataReq.Address), 8)
			dataWord = w
		}
		if store.Valid {
			d.Shadow.Store(store.Addr, store.Width(), store.Data)
		}

		if dutRet.Commit {
			if !recordsMatch(issRet, dutRet) {
				return issRet, &Divergence{LastGood: d.lastGood, ISS: issRet, DUT: dutRet}
			}
			good := issRet
			d.lastGood = &good
			return issRet, nil
		}

		if d.DeadlockCycles > 0 && cycle >= d.DeadlockCycles {
			return issRet, &DeadlockError{Cycles: cycle}
		}
	}
}

// fetchISSWord translates addr through the ISS's own MMU (in the hart's
// current mode) and reads the instruction word from the ISS bus, standing
// in for a DUT's instruction-SRAM port being serviced out of the ISS's
// address space rather than its own memory.
func (d *Driver) fetchISSWord(addr uint64) uint32 {
	phys, err := mmu.Translate(&d.ISS.Hart.CSR, d.ISS.Bus, addr, trap.AccessInstruction, d.ISS.Hart.Mode)
	if err != nil {
		return 0
	}
	w, _ := d.ISS.Bus.Load(phys, 4)
	return uint32(w)
}

// recordsMatch compares two retirement records field-wise, ignoring the
// destination-register fields when the ISS wrote to x0 (stores, branches,
// and anything else with no integer destination).
func recordsMatch(iss hart.Retirement, d dut.Retirement) bool {
	if iss.PC != d.PC {
		return false
	}
	if iss.RdIndex == 0 {
		return true
	}
	return iss.RdIndex == d.RdIndex && iss.RdValue == d.RdValue
}
