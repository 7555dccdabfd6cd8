package cosim

import (
	"testing"

	"github.com/Clo91eaf/hemu/dut/refdut"
	"github.com/Clo91eaf/hemu/emu/asmtest"
	"github.com/Clo91eaf/hemu/emu/bus"
	"github.com/Clo91eaf/hemu/emu/system"
)

func TestIdenticalDUTNeverDiverges(t *testing.T) {
	prog := asmtest.Bytes(
		asmtest.Addi(5, 0, 10),
		asmtest.Addi(6, 0, 20),
		asmtest.Add(7, 5, 6),
		asmtest.Ebreak,
	)

	iss := system.New(64*1024, nil, nil)
	iss.LoadImage(prog)

	d := refdut.New(64 * 1024)
	d.LoadImage(0, prog)
	d.Reset()

	shadow := bus.New(64 * 1024)
	shadow.LoadBytes(0, prog)

	drv := New(iss, d, shadow, 1000)

	for i := 0; i < 4; i++ {
		if _, err := drv.Step(); err != nil {
			t.Fatalf("step %d: unexpected divergence/error: %v", i, err)
		}
	}
	if got := iss.Hart.GPR.Read(7); got != 30 {
		t.Fatalf("x7 = %d, want 30", got)
	}
}

func TestBuggyDUTReportsDivergence(t *testing.T) {
	prog := asmtest.Bytes(
		asmtest.Addi(6, 0, -1),
		asmtest.Addi(7, 0, 4),
		asmtest.R(asmtest.OpReg, 0b101, 0b0100000, 5, 6, 7), // sra x5, x6, x7
		asmtest.Ebreak,
	)

	iss := system.New(64*1024, nil, nil)
	iss.LoadImage(prog)

	d := refdut.NewWithBrokenSRA(64 * 1024)
	d.LoadImage(0, prog)
	d.Reset()

	shadow := bus.New(64 * 1024)
	shadow.LoadBytes(0, prog)

	drv := New(iss, d, shadow, 1000)

	if _, err := drv.Step(); err != nil { // addi x6
		t.Fatalf("unexpected error on step 1: %v", err)
	}
	if _, err := drv.Step(); err != nil { // addi x7
		t.Fatalf("unexpected error on step 2: %v", err)
	}
	_, err := drv.Step() // sra x5, x6, x7 -- should diverge
	if err == nil {
		t.Fatal("expected a divergence on the SRA instruction")
	}
	div, ok := err.(*Divergence)
	if !ok {
		t.Fatalf("expected *Divergence, got %T: %v", err, err)
	}
	if div.ISS.RdValue == div.DUT.RdValue {
		t.Fatal("divergence report should show differing rd values")
	}
	if div.LastGood == nil {
		t.Fatal("divergence report should carry the last good record")
	}
}
