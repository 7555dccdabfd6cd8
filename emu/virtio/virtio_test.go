package virtio

import (
	"testing"

	"github.com/Clo91eaf/hemu/emu/event"
)

type flatMemory struct {
	buf []byte
}

func newFlatMemory(size int) *flatMemory { return &flatMemory{buf: make([]byte, size)} }

func (m *flatMemory) ReadByte(addr uint64) (byte, bool) {
	if addr >= uint64(len(m.buf)) {
		return 0, false
	}
	return m.buf[addr], true
}

func (m *flatMemory) WriteByte(addr uint64, v byte) bool {
	if addr >= uint64(len(m.buf)) {
		return false
	}
	m.buf[addr] = v
	return true
}

func (m *flatMemory) put16(addr uint64, v uint16) {
	m.buf[addr] = byte(v)
	m.buf[addr+1] = byte(v >> 8)
}

func (m *flatMemory) put32(addr uint64, v uint32) {
	for i := 0; i < 4; i++ {
		m.buf[addr+uint64(i)] = byte(v >> (8 * i))
	}
}

func (m *flatMemory) put64(addr uint64, v uint64) {
	for i := 0; i < 8; i++ {
		m.buf[addr+uint64(i)] = byte(v >> (8 * i))
	}
}

const (
	testDescBase  = 0x1000
	testAvailBase = 0x2000
	testUsedBase  = 0x3000
	testHdrAddr   = 0x100
	testDataAddr  = 0x200
	testStatAddr  = 0x700
)

// buildReadChain lays out a 3-descriptor read (reqTypeIn) request chain and
// posts it as the sole entry in the avail ring, the way a virtio-blk driver
// would before writing to offQueueNotify.
func buildReadChain(m *flatMemory, sector uint64) {
	m.put32(testHdrAddr, reqTypeIn)
	m.put64(testHdrAddr+8, sector)

	m.put64(testDescBase+0*descSize, testHdrAddr)
	m.put32(testDescBase+0*descSize+8, 16)
	m.put16(testDescBase+0*descSize+12, descFlagNext)
	m.put16(testDescBase+0*descSize+14, 1)

	m.put64(testDescBase+1*descSize, testDataAddr)
	m.put32(testDescBase+1*descSize+8, sectorSize)
	m.put16(testDescBase+1*descSize+12, descFlagNext|descFlagWrite)
	m.put16(testDescBase+1*descSize+14, 2)

	m.put64(testDescBase+2*descSize, testStatAddr)
	m.put32(testDescBase+2*descSize+8, 1)
	m.put16(testDescBase+2*descSize+12, 0)
	m.put16(testDescBase+2*descSize+14, 0)

	m.put16(testAvailBase+2, 1) // avail.idx = 1
	m.put16(testAvailBase+4, 0) // ring[0] = descriptor head 0
}

func setupQueue(b *Block, m *flatMemory) {
	b.Store(offQueueNum, 4, 8)
	b.Store(offQueueDescLow, 4, testDescBase)
	b.Store(offQueueDescHigh, 4, 0)
	b.Store(offQueueAvailLow, 4, testAvailBase)
	b.Store(offQueueAvailHigh, 4, 0)
	b.Store(offQueueUsedLow, 4, testUsedBase)
	b.Store(offQueueUsedHigh, 4, 0)
	b.Store(offQueueReady, 4, 1)
}

func TestLoadReportsMagicVersionVendorAndDeviceID(t *testing.T) {
	b := New(make([]byte, sectorSize), newFlatMemory(0x4000), &event.List{})

	if v, _ := b.Load(offMagicValue, 4); v != magicValue {
		t.Fatalf("magic = %#x, want %#x", v, magicValue)
	}
	if v, _ := b.Load(offVersion, 4); v != version {
		t.Fatalf("version = %d, want %d", v, version)
	}
	if v, _ := b.Load(offDeviceID, 4); v != deviceIDBlock {
		t.Fatalf("device id = %d, want %d", v, deviceIDBlock)
	}
	if v, _ := b.Load(offVendorID, 4); v != vendorID {
		t.Fatalf("vendor id = %#x, want %#x", v, vendorID)
	}
}

func TestNotifyCompletesReadRequestAfterLatency(t *testing.T) {
	disk := make([]byte, sectorSize)
	for i := range disk {
		disk[i] = byte(i)
	}
	mem := newFlatMemory(0x4000)
	evs := &event.List{}
	b := New(disk, mem, evs)

	setupQueue(b, mem)
	buildReadChain(mem, 0)
	b.Store(offQueueNotify, 4, 0)

	if b.IRQ() {
		t.Fatal("completion should not be visible before the scheduled latency elapses")
	}
	if got, _ := mem.ReadByte(testDataAddr); got != disk[0] {
		t.Fatalf("processChain should copy disk data into the buffer immediately, got %#x want %#x", got, disk[0])
	}

	for i := 0; i <= completionLatencyCycles; i++ {
		evs.Tick()
	}

	if !b.IRQ() {
		t.Fatal("IRQ should assert once the scheduled completion fires")
	}
	status, _ := mem.ReadByte(testStatAddr)
	if status != 0 {
		t.Fatalf("status byte = %d, want 0 (success)", status)
	}
}

func TestInterruptACKClearsStatusBit(t *testing.T) {
	disk := make([]byte, sectorSize)
	mem := newFlatMemory(0x4000)
	evs := &event.List{}
	b := New(disk, mem, evs)

	setupQueue(b, mem)
	buildReadChain(mem, 0)
	b.Store(offQueueNotify, 4, 0)
	for i := 0; i <= completionLatencyCycles; i++ {
		evs.Tick()
	}
	if !b.IRQ() {
		t.Fatal("expected IRQ before ACK")
	}

	status, _ := b.Load(offInterruptStatus, 4)
	b.Store(offInterruptACK, 4, status)

	if b.IRQ() {
		t.Fatal("IRQ should deassert once acknowledged")
	}
}

func TestResetClearsQueueAndInterruptState(t *testing.T) {
	disk := make([]byte, sectorSize)
	mem := newFlatMemory(0x4000)
	evs := &event.List{}
	b := New(disk, mem, evs)

	setupQueue(b, mem)
	buildReadChain(mem, 0)
	b.Store(offQueueNotify, 4, 0)
	for i := 0; i <= completionLatencyCycles; i++ {
		evs.Tick()
	}

	b.Reset()

	if b.IRQ() {
		t.Fatal("IRQ should be clear after reset")
	}
	if v, _ := b.Load(offQueueReady, 4); v != 0 {
		t.Fatalf("queue ready after reset = %d, want 0", v)
	}
}
