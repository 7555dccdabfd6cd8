package clint

import "testing"

func TestTickAdvancesMtime(t *testing.T) {
	c := New()
	c.Tick()
	c.Tick()
	c.Tick()
	if c.Mtime() != 3 {
		t.Fatalf("Mtime = %d, want 3", c.Mtime())
	}
}

func TestMachineTimerPendingWhenMtimeReachesMtimecmp(t *testing.T) {
	c := New()
	c.Store(offMtimecmp, 8, 5)
	for i := 0; i < 4; i++ {
		c.Tick()
		if c.MachineTimerPending() {
			t.Fatalf("timer pending too early at mtime=%d", c.Mtime())
		}
	}
	c.Tick()
	if !c.MachineTimerPending() {
		t.Fatalf("timer should be pending once mtime reaches mtimecmp (mtime=%d)", c.Mtime())
	}
}

func TestMachineSoftwarePendingTracksMsipLowBit(t *testing.T) {
	c := New()
	c.Store(offMsip, 4, 1)
	if !c.MachineSoftwarePending() {
		t.Fatal("msip bit 0 set should assert MachineSoftwarePending")
	}
	c.Store(offMsip, 4, 0)
	if c.MachineSoftwarePending() {
		t.Fatal("msip cleared should deassert MachineSoftwarePending")
	}
}

func TestMsipStoreMasksToLowBit(t *testing.T) {
	c := New()
	c.Store(offMsip, 4, 0xfffffffe)
	v, _ := c.Load(offMsip, 4)
	if v != 0 {
		t.Fatalf("msip = %#x, want only bit 0 retained (0)", v)
	}
}

func TestLoadUnknownOffsetFails(t *testing.T) {
	c := New()
	if _, ok := c.Load(0x1234, 8); ok {
		t.Fatal("load at an unmapped CLINT offset should fail")
	}
}

func TestResetRestoresMtimecmpToAllOnes(t *testing.T) {
	c := New()
	c.Store(offMtimecmp, 8, 100)
	c.Tick()
	c.Reset()
	if c.Mtime() != 0 {
		t.Fatalf("mtime after reset = %d, want 0", c.Mtime())
	}
	v, _ := c.Load(offMtimecmp, 8)
	if v != ^uint64(0) {
		t.Fatalf("mtimecmp after reset = %#x, want all-ones", v)
	}
}
