package csr

import "testing"

func TestSstatusAliasesMstatus(t *testing.T) {
	var f File
	f.Write(Mstatus, 1<<BitSIE|1<<BitMIE, M)

	v, ok := f.Read(Sstatus, S)
	if !ok {
		t.Fatal("expected sstatus read to succeed from S mode")
	}
	if v&(1<<BitSIE) == 0 {
		t.Fatalf("sstatus should reflect SIE set in mstatus, got 0x%x", v)
	}
	if v&(1<<BitMIE) != 0 {
		t.Fatalf("sstatus must not expose MIE, got 0x%x", v)
	}
}

func TestWriteSstatusDoesNotDisturbMIE(t *testing.T) {
	var f File
	f.Write(Mstatus, 1<<BitMIE, M)
	f.Write(Sstatus, 1<<BitSIE, S)

	mstatus, _ := f.Read(Mstatus, M)
	if mstatus&(1<<BitMIE) == 0 {
		t.Fatal("writing sstatus must not clear MIE")
	}
	if mstatus&(1<<BitSIE) == 0 {
		t.Fatal("writing sstatus must set SIE in mstatus")
	}
}

func TestUModeCannotReadMachineCSR(t *testing.T) {
	var f File
	if _, ok := f.Read(Mstatus, U); ok {
		t.Fatal("U-mode should not be able to read mstatus")
	}
}

func TestReadOnlyCSRRejectsWrite(t *testing.T) {
	var f File
	if f.Write(Mhartid, 5, M) {
		t.Fatal("mhartid is read-only, write should fail")
	}
}

func TestSatpWriteLatchesPagingMode(t *testing.T) {
	var f File
	f.Write(Satp, uint64(8)<<60|0x1234, M)
	if !f.PagingEnabled() {
		t.Fatal("satp.MODE=Sv39 should enable paging")
	}
	if f.RootPPN() != 0x1234 {
		t.Fatalf("root PPN = 0x%x, want 0x1234", f.RootPPN())
	}

	f.Write(Satp, uint64(3)<<60, M) // unsupported mode, WARL reject
	if !f.PagingEnabled() {
		t.Fatal("unsupported satp.MODE write should be rejected, leaving paging enabled")
	}
}

func TestSieMasksToSupervisorBitsOnly(t *testing.T) {
	var f File
	f.Write(Mie, 1<<BitMEIP|1<<BitSEIP, M)
	v, _ := f.Read(Sie, S)
	if v != 1<<BitSEIP {
		t.Fatalf("sie = 0x%x, want only SEIP bit visible", v)
	}
}
