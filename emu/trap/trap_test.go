package trap

import (
	"testing"

	"github.com/Clo91eaf/hemu/emu/csr"
)

func TestPendingRespectsPriorityOrder(t *testing.T) {
	var c csr.File
	c.Write(csr.Mstatus, 1<<csr.BitMIE, csr.M)
	c.Write(csr.Mie, 1<<csr.BitMTIP|1<<csr.BitMSIP|1<<csr.BitMEIP, csr.M)
	c.SetInterruptPending(csr.BitMTIP, true)
	c.SetInterruptPending(csr.BitMSIP, true)
	c.SetInterruptPending(csr.BitMEIP, true)

	code, ok := Pending(&c, csr.M)
	if !ok {
		t.Fatal("expected a pending interrupt")
	}
	if code != MachineExternalInterrupt {
		t.Fatalf("code = %d, want MachineExternalInterrupt (highest priority)", code)
	}
}

func TestPendingGatedByGlobalEnable(t *testing.T) {
	var c csr.File
	c.Write(csr.Mie, 1<<csr.BitMTIP, csr.M)
	c.SetInterruptPending(csr.BitMTIP, true)
	// MIE clear in mstatus: current-mode interrupt must not fire.
	if _, ok := Pending(&c, csr.M); ok {
		t.Fatal("interrupt targeting current mode must be masked when MIE is clear")
	}
}

func TestPendingToHigherModeIgnoresEnable(t *testing.T) {
	var c csr.File
	c.Write(csr.Mideleg, 1<<SupervisorTimerInterrupt, csr.M)
	c.Write(csr.Mie, 1<<csr.BitSTIP, csr.M)
	c.SetInterruptPending(csr.BitSTIP, true)
	// Hart currently in U-mode: an interrupt targeting S-mode (strictly
	// above U) must be taken regardless of sstatus.SIE.
	code, ok := Pending(&c, csr.U)
	if !ok || code != SupervisorTimerInterrupt {
		t.Fatalf("interrupt to higher mode should always be taken, got code=%d ok=%v", code, ok)
	}
}

func TestDelegatedExceptionToSMode(t *testing.T) {
	var c csr.File
	c.Write(csr.Medeleg, 1<<Breakpoint, csr.M)
	if !Delegated(&c, Breakpoint, false, csr.U) {
		t.Fatal("breakpoint should delegate to S-mode when medeleg bit is set and current mode is U")
	}
}

func TestDelegationNeverAppliesFromMMode(t *testing.T) {
	var c csr.File
	c.Write(csr.Medeleg, 1<<Breakpoint, csr.M)
	if Delegated(&c, Breakpoint, false, csr.M) {
		t.Fatal("a trap taken while already in M-mode must never be delegated to S-mode")
	}
}

func TestDelegatedInterruptUsesMideleg(t *testing.T) {
	var c csr.File
	c.Write(csr.Mideleg, 1<<SupervisorExternalInterrupt, csr.M)
	if !Delegated(&c, SupervisorExternalInterrupt, true, csr.S) {
		t.Fatal("mideleg bit should delegate the matching interrupt")
	}
	if Delegated(&c, SupervisorSoftwareInterrupt, true, csr.S) {
		t.Fatal("an undelegated interrupt must stay in M-mode")
	}
}
