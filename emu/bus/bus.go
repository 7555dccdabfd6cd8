// Package bus routes loads and stores to DRAM or to a memory-mapped
// device by address range, the way the teacher's memory package routes a
// flat address through a single backing array — except here the backing
// store is one of several regions (DRAM, CLINT, PLIC, UART, virtio) picked
// by range rather than always the same array.
package bus

import "github.com/Clo91eaf/hemu/emu/device"

// Device is the subset of emu/device.Device the bus drives: width-based
// load/store plus the per-cycle tick and level-interrupt query. Declared
// locally so bus does not need to import every concrete device package;
// callers pass concrete devices in that already satisfy this shape.
type Device interface {
	Name() string
	Load(offset uint64, width int) (uint64, bool)
	Store(offset uint64, width int, value uint64) bool
	Tick()
	IRQ() bool
	Reset()
}

type region struct {
	base uint64
	size uint64
	dev  Device
}

// Bus is the single address space a hart's loads, stores, and instruction
// fetches pass through: a flat DRAM array plus a handful of MMIO device
// windows.
type Bus struct {
	dram []byte

	regions []region

	// lastStore records the most recent store's address, width, and value
	// so the co-simulation driver can mirror a DUT store into this bus
	// without re-deriving it from a retirement record.
	lastStoreAddr  uint64
	lastStoreWidth int
	lastStoreValue uint64
	lastStoreValid bool
}

// New creates a bus with dramSize bytes of DRAM at device.DRAMBase and no
// devices attached; use Attach to map devices into the address space.
func New(dramSize uint64) *Bus {
	return &Bus{dram: make([]byte, dramSize)}
}

// Attach maps dev into the address window [base, base+size).
func (b *Bus) Attach(base, size uint64, dev Device) {
	b.regions = append(b.regions, region{base: base, size: size, dev: dev})
}

// LoadBytes copies the flashed kernel/disk image into DRAM starting at
// offset (relative to device.DRAMBase).
func (b *Bus) LoadBytes(offset uint64, data []byte) {
	copy(b.dram[offset:], data)
}

// Load reads width bytes (1, 2, 4, or 8) at physical address addr,
// little-endian. ok is false for an unmapped address or unsupported
// width.
func (b *Bus) Load(addr uint64, width int) (uint64, bool) {
	if addr >= device.DRAMBase && addr-device.DRAMBase+uint64(width) <= uint64(len(b.dram)) {
		return b.loadDRAM(addr-device.DRAMBase, width), true
	}
	for _, r := range b.regions {
		if addr >= r.base && addr < r.base+r.size {
			return r.dev.Load(addr-r.base, width)
		}
	}
	return 0, false
}

// Store writes width bytes of value at physical address addr,
// little-endian, recording it as the bus's last observed store.
func (b *Bus) Store(addr uint64, width int, value uint64) bool {
	b.lastStoreAddr = addr
	b.lastStoreWidth = width
	b.lastStoreValue = value
	b.lastStoreValid = true

	if addr >= device.DRAMBase && addr-device.DRAMBase+uint64(width) <= uint64(len(b.dram)) {
		b.storeDRAM(addr-device.DRAMBase, width, value)
		return true
	}
	for _, r := range b.regions {
		if addr >= r.base && addr < r.base+r.size {
			return r.dev.Store(addr-r.base, width, value)
		}
	}
	return false
}

func (b *Bus) loadDRAM(offset uint64, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(b.dram[offset+uint64(i)]) << (8 * i)
	}
	return v
}

func (b *Bus) storeDRAM(offset uint64, width int, value uint64) {
	for i := 0; i < width; i++ {
		b.dram[offset+uint64(i)] = byte(value >> (8 * i))
	}
}

// ReadByte and WriteByte give devices (virtio's descriptor-chain walker in
// particular) raw DRAM access for DMA-style transfers, bypassing the
// device-routing table since descriptor tables and data buffers live in
// guest RAM, not in another device's MMIO window.
func (b *Bus) ReadByte(addr uint64) (byte, bool) {
	if addr < device.DRAMBase || addr-device.DRAMBase >= uint64(len(b.dram)) {
		return 0, false
	}
	return b.dram[addr-device.DRAMBase], true
}

func (b *Bus) WriteByte(addr uint64, v byte) bool {
	if addr < device.DRAMBase || addr-device.DRAMBase >= uint64(len(b.dram)) {
		return false
	}
	b.dram[addr-device.DRAMBase] = v
	return true
}

// Tick advances every attached device by one cycle.
func (b *Bus) Tick() {
	for _, r := range b.regions {
		r.dev.Tick()
	}
}

// PendingIRQs reports the device.UARTIRQ/device.VirtioIRQ source numbers
// currently asserting, for the PLIC to aggregate.
func (b *Bus) PendingIRQs() map[int]bool {
	pending := make(map[int]bool)
	for _, r := range b.regions {
		switch r.base {
		case device.UARTBase:
			pending[device.UARTIRQ] = r.dev.IRQ()
		case device.VirtioBase:
			pending[device.VirtioIRQ] = r.dev.IRQ()
		}
	}
	return pending
}

// LastStore returns the most recent store this bus observed, used by the
// co-simulation driver to mirror a reference DUT's store instead of
// independently computing one.
func (b *Bus) LastStore() (addr uint64, width int, value uint64, ok bool) {
	return b.lastStoreAddr, b.lastStoreWidth, b.lastStoreValue, b.lastStoreValid
}

// ClearLastStore resets the last-store observation. The reference DUT calls
// it before each instruction it executes; Hart.Step does not call it.
func (b *Bus) ClearLastStore() { b.lastStoreValid = false }

func (b *Bus) Reset() {
	for i := range b.dram {
		b.dram[i] = 0
	}
	for _, r := range b.regions {
		r.dev.Reset()
	}
	b.lastStoreValid = false
}
