package uart

import "testing"

func TestPushThenLoadRBRDrainsFIFOInOrder(t *testing.T) {
	u := New()
	u.Push('h', 'i')

	v, ok := u.Load(offRBR, 1)
	if !ok || v != 'h' {
		t.Fatalf("first RBR read = %#x, %v, want 'h', true", v, ok)
	}
	v, ok = u.Load(offRBR, 1)
	if !ok || v != 'i' {
		t.Fatalf("second RBR read = %#x, %v, want 'i', true", v, ok)
	}
}

func TestStoreTHRAppendsToOutputBuffer(t *testing.T) {
	u := New()
	u.Store(offTHR, 1, 'A')
	u.Store(offTHR, 1, 'B')

	got := u.TakeOutput()
	if string(got) != "AB" {
		t.Fatalf("TakeOutput = %q, want %q", got, "AB")
	}
	if len(u.TakeOutput()) != 0 {
		t.Fatal("TakeOutput should drain the buffer")
	}
}

func TestLineStatusReportsDataReadyOnlyWhenFIFONonEmpty(t *testing.T) {
	u := New()
	v, _ := u.Load(offLSR, 1)
	if byte(v)&lsrDataReady != 0 {
		t.Fatal("data-ready bit should be clear with an empty FIFO")
	}

	u.Push('x')
	v, _ = u.Load(offLSR, 1)
	if byte(v)&lsrDataReady == 0 {
		t.Fatal("data-ready bit should be set once a byte is pushed")
	}
}

func TestIRQAssertsOnceRxAvailableEnabledAndDataPresent(t *testing.T) {
	u := New()
	u.Store(offIER, 1, ierRxAvailable)
	if u.IRQ() {
		t.Fatal("IRQ should not assert before any data arrives")
	}
	u.Push('z')
	if !u.IRQ() {
		t.Fatal("IRQ should assert once RX data is available and enabled")
	}
}

func TestDivisorLatchAccessGatedByLCRDLAB(t *testing.T) {
	u := New()
	u.Store(offLCR, 1, 0x80) // set DLAB
	u.Store(offTHR, 1, 0x0c) // writes DLL, not the TX buffer
	u.Store(offIER, 1, 0x00) // writes DLM, not IER

	u.Store(offLCR, 1, 0x00) // clear DLAB
	if out := u.TakeOutput(); len(out) != 0 {
		t.Fatalf("TakeOutput = %v, want empty: DLAB-gated write should not reach THR", out)
	}
}

func TestResetClearsFIFOsAndRegisters(t *testing.T) {
	u := New()
	u.Push('q')
	u.Store(offTHR, 1, 'r')
	u.Store(offIER, 1, 0x0f)

	u.Reset()

	if v, _ := u.Load(offLSR, 1); byte(v)&lsrDataReady != 0 {
		t.Fatal("RX FIFO should be empty after reset")
	}
	if out := u.TakeOutput(); len(out) != 0 {
		t.Fatal("TX buffer should be empty after reset")
	}
	if v, _ := u.Load(offIER, 1); v != 0 {
		t.Fatalf("IER after reset = %#x, want 0", v)
	}
}
