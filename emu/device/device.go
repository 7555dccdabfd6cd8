// Package device defines the common contract implemented by every
// memory-mapped peripheral on the bus: CLINT, PLIC, the UART, and the
// virtio block device.
package device

// Device is the lifecycle and MMIO contract every bus peripheral satisfies.
// Width is one of 1, 2, 4, 8 bytes; offset is relative to the device's own
// base address, already stripped by the bus router.
type Device interface {
	// Name identifies the device in logs and divergence reports.
	Name() string

	// Load reads width bytes at offset within the device's register space.
	Load(offset uint64, width int) (uint64, bool)

	// Store writes width bytes at offset. Returns false if offset/width is
	// not implemented by the device.
	Store(offset uint64, width int, value uint64) bool

	// Tick advances the device by one ISS cycle, e.g. to age a pending
	// completion event or re-evaluate line status.
	Tick()

	// IRQ reports whether the device currently asserts its interrupt line.
	IRQ() bool

	// Reset restores power-on state.
	Reset()
}

// Base addresses for the conventional SoC layout this emulator models.
// These mirror the addresses QEMU's virt machine and most bare-metal RISC-V
// kernels (xv6, early Linux) expect out of the box.
const (
	CLINTBase  uint64 = 0x0200_0000
	CLINTSize  uint64 = 0x0001_0000
	PLICBase   uint64 = 0x0c00_0000
	PLICSize   uint64 = 0x0400_0000
	UARTBase   uint64 = 0x1000_0000
	UARTSize   uint64 = 0x0000_0100
	VirtioBase uint64 = 0x1000_1000
	VirtioSize uint64 = 0x0000_1000
	DRAMBase   uint64 = 0x8000_0000

	UARTIRQ   int = 10
	VirtioIRQ int = 1
)
