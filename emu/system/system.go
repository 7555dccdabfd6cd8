// Package system wires a hart to the conventional SoC this emulator
// models — DRAM, CLINT, PLIC, UART, and a virtio block device — mirroring
// the way the teacher's core.NewCPU assembles a CPU together with its
// channel subsystem and device models into one runnable machine, so both
// the plain ISS driver (main.go) and the co-simulation driver (cosim) can
// build an identical machine from one constructor instead of duplicating
// the device-attachment wiring.
package system

import (
	"log/slog"

	"github.com/Clo91eaf/hemu/emu/bus"
	"github.com/Clo91eaf/hemu/emu/clint"
	"github.com/Clo91eaf/hemu/emu/csr"
	"github.com/Clo91eaf/hemu/emu/device"
	"github.com/Clo91eaf/hemu/emu/event"
	"github.com/Clo91eaf/hemu/emu/hart"
	"github.com/Clo91eaf/hemu/emu/plic"
	"github.com/Clo91eaf/hemu/emu/uart"
	"github.com/Clo91eaf/hemu/emu/virtio"
)

// System is one hart plus the bus and devices it executes against.
type System struct {
	Hart   *hart.Hart
	Bus    *bus.Bus
	CLINT  *clint.CLINT
	PLIC   *plic.PLIC
	UART   *uart.UART
	Virtio *virtio.Block
	Events *event.List
}

// New builds a machine with dramSize bytes of DRAM and, if disk is
// non-nil, a virtio block device backed by it. log is passed through to
// the hart for trap tracing; nil selects slog's default logger.
func New(dramSize uint64, disk []byte, log *slog.Logger) *System {
	b := bus.New(dramSize)
	evs := &event.List{}

	s := &System{
		Bus:    b,
		CLINT:  clint.New(),
		PLIC:   plic.New(),
		UART:   uart.New(),
		Events: evs,
		Hart:   hart.New(b, log),
	}
	b.Attach(device.CLINTBase, device.CLINTSize, s.CLINT)
	b.Attach(device.PLICBase, device.PLICSize, s.PLIC)
	b.Attach(device.UARTBase, device.UARTSize, s.UART)
	if disk != nil {
		s.Virtio = virtio.New(disk, b, evs)
		b.Attach(device.VirtioBase, device.VirtioSize, s.Virtio)
	}
	return s
}

// LoadImage flashes a flat kernel image into DRAM starting at
// device.DRAMBase and points PC at it.
func (s *System) LoadImage(image []byte) {
	s.Bus.LoadBytes(0, image)
	s.Hart.PC = device.DRAMBase
}

// Step advances the machine by exactly one retired instruction: age the
// event scheduler and every device by one cycle, aggregate device
// interrupt lines into mip, then execute one hart instruction.
func (s *System) Step() hart.Retirement {
	s.Events.Tick()
	s.Bus.Tick()
	s.routeInterrupts()
	return s.Hart.Step()
}

// routeInterrupts aggregates the CLINT's local timer/software lines and
// the PLIC's claim-ready external line into mip, the way real hardware
// wires MTIP/MSIP straight from the CLINT and SEIP/MEIP from the PLIC's
// per-context output, rather than through the generic Device.IRQ path
// those two controllers don't use for their own inputs.
func (s *System) routeInterrupts() {
	s.Hart.CSR.SetInterruptPending(csr.BitMTIP, s.CLINT.MachineTimerPending())
	s.Hart.CSR.SetInterruptPending(csr.BitMSIP, s.CLINT.MachineSoftwarePending())

	for source, level := range s.Bus.PendingIRQs() {
		s.PLIC.Raise(source, level)
	}
	s.Hart.CSR.SetInterruptPending(csr.BitSEIP, s.PLIC.IRQ())
}

// Reset restores the machine to its power-on state.
func (s *System) Reset() {
	s.Bus.Reset()
	s.Events.Reset()
	s.Hart.Reset()
}
