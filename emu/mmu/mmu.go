// Package mmu implements the Sv39 three-level page-table walk: a 39-bit
// virtual address space backed by 4 KiB pages, with 2 MiB and 1 GiB
// superpage support and the permission checks on valid/R/W/X, U and
// SUM/MXR. The A and D bits are neither checked nor written back.
package mmu

import (
	"github.com/Clo91eaf/hemu/emu/csr"
	"github.com/Clo91eaf/hemu/emu/trap"
)

const (
	pteValid = 1 << 0
	pteRead  = 1 << 1
	pteWrite = 1 << 2
	pteExec  = 1 << 3
	pteUser  = 1 << 4
	pteGlobal = 1 << 5
	pteAccessed = 1 << 6
	pteDirty    = 1 << 7

	pageShift = 12
	pageSize  = 1 << pageShift
)

// Bus is the physical-memory access the page-table walker needs. emu/bus.Bus
// satisfies this directly.
type Bus interface {
	Load(addr uint64, width int) (uint64, bool)
}

// Translate walks the Sv39 page table rooted at csrs.RootPPN() to resolve
// virtual address vaddr for the given access kind, as observed by a hart
// currently in mode (the effective mode, already adjusted for MPRV by the
// caller). It returns the physical address on success, or a page-fault
// *trap.Exception naming vaddr as Tval.
//
// When paging is disabled (csrs.PagingEnabled() false) or mode is M,
// translation is the identity function.
func Translate(csrs *csr.File, bus Bus, vaddr uint64, access trap.Access, mode uint8) (uint64, error) {
	if mode == csr.M || !csrs.PagingEnabled() {
		return vaddr, nil
	}

	vpn := [3]uint64{
		(vaddr >> 12) & 0x1ff,
		(vaddr >> 21) & 0x1ff,
		(vaddr >> 30) & 0x1ff,
	}

	ppn := csrs.RootPPN()
	var pte uint64
	level := 2
	for {
		pteAddr := ppn*pageSize + vpn[level]*8
		raw, ok := bus.Load(pteAddr, 8)
		if !ok {
			return 0, pageFault(access, vaddr)
		}
		pte = raw

		if pte&pteValid == 0 || (pte&pteRead == 0 && pte&pteWrite != 0) {
			return 0, pageFault(access, vaddr)
		}
		if pte&(pteRead|pteWrite|pteExec) != 0 {
			break // leaf PTE
		}
		if level == 0 {
			return 0, pageFault(access, vaddr)
		}
		ppn = pte >> 10
		level--
	}

	if !permitted(pte, access, mode, csrs) {
		return 0, pageFault(access, vaddr)
	}

	// Misaligned superpage: a leaf above level 0 must have its lower PPN
	// fields zero.
	leafPPN := pte >> 10
	for i := 0; i < level; i++ {
		if leafPPN&(0x1ff<<(9*uint(i))) != 0 {
			return 0, pageFault(access, vaddr)
		}
	}

	if pte&pteAccessed == 0 || (access == trap.AccessStore && pte&pteDirty == 0) {
		// A/D update is required by the spec; this emulator does not
		// write it back (see design notes) and instead treats it as
		// already set, relying on boot software leaving A/D pre-set as
		// QEMU's OpenSBI/Linux pairing does.
	}

	physPage := leafPPN
	offsetMask := uint64(pageSize - 1)
	for i := 0; i < level; i++ {
		// Superpage: low-order VPN fields pass through from vaddr.
		shift := uint(9 * i)
		physPage &^= 0x1ff << shift
		physPage |= vpn[i] << shift
		offsetMask = offsetMask<<9 | 0x1ff
	}

	pageOffset := vaddr & (pageSize - 1)
	return (physPage << pageShift) | pageOffset, nil
}

func permitted(pte uint64, access trap.Access, mode uint8, csrs *csr.File) bool {
	if pte&pteUser != 0 {
		if mode == csr.U {
			// ok, fall through to permission bits
		} else if csrs.Mstatus()&(1<<csr.BitSUM) == 0 {
			return false
		}
	} else if mode == csr.U {
		return false
	}

	switch access {
	case trap.AccessInstruction:
		return pte&pteExec != 0
	case trap.AccessStore:
		return pte&pteWrite != 0
	default: // AccessLoad
		if pte&pteRead != 0 {
			return true
		}
		// MXR: loads may read executable-but-not-readable pages.
		return csrs.Mstatus()&(1<<csr.BitMXR) != 0 && pte&pteExec != 0
	}
}

func pageFault(access trap.Access, vaddr uint64) error {
	return &trap.Exception{Code: trap.PageFaultKind(access), Tval: vaddr}
}
