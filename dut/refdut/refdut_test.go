package refdut

import (
	"testing"

	"github.com/Clo91eaf/hemu/emu/asmtest"
)

func TestResetHoldsTwoCycles(t *testing.T) {
	d := New(4096)
	d.LoadImage(0, asmtest.Bytes(asmtest.Addi(5, 0, 1)))
	d.Reset()

	_, _, _, r1 := d.Step(0, 0)
	if r1.Commit {
		t.Fatal("first cycle after reset must not commit")
	}
	_, _, _, r2 := d.Step(0, 0)
	if r2.Commit {
		t.Fatal("second cycle after reset is still inside the two-cycle hold and must not commit")
	}
	_, _, _, r3 := d.Step(0, 0)
	if !r3.Commit {
		t.Fatal("the instruction should commit on the first call after the reset hold ends")
	}
	if r3.RdIndex != 5 || r3.RdValue != 1 {
		t.Fatalf("retirement = %+v, want x5=1", r3)
	}
}

func TestBrokenSRADivergesFromArithmeticShift(t *testing.T) {
	d := NewWithBrokenSRA(4096)
	prog := asmtest.Bytes(
		asmtest.Addi(6, 0, -1), // x6 = all-ones
		asmtest.Addi(7, 0, 4),
		asmtest.R(asmtest.OpReg, 0b101, 0b0100000, 5, 6, 7), // sra x5, x6, x7
	)
	d.LoadImage(0, prog)
	d.Reset()

	d.Step(0, 0) // reset cycle 1
	d.Step(0, 0) // reset cycle 2
	d.Step(0, 0) // commits addi x6
	d.Step(0, 0) // commits addi x7
	_, _, _, r := d.Step(0, 0)
	if r.RdValue != 0x0fff_ffff_ffff_ffff {
		t.Fatalf("broken SRA result = 0x%x, want logical-shift result", r.RdValue)
	}
}
