package hart

import (
	"math"
	"math/bits"

	"github.com/Clo91eaf/hemu/emu/decode"
	"github.com/Clo91eaf/hemu/emu/mmu"
	"github.com/Clo91eaf/hemu/emu/trap"
)

// execute performs the decoded operation d, fetched at pc with nextPC
// already set to the fall-through address (branches/jumps overwrite
// *nextPC to redirect control flow). It returns the destination register
// and value to retire (hasRd false for stores, branches, and anything
// else with no integer destination), or a trap exception.
func (h *Hart) execute(d decode.Decoded, pc uint64, nextPC *uint64) (rd uint8, value uint64, hasRd bool, exc *trap.Exception) {
	rs1 := h.GPR.Read(d.Rs1)
	rs2 := h.GPR.Read(d.Rs2)

	switch d.Op {
	// --- register-register, 64-bit ---
	case decode.ADD:
		return d.Rd, rs1 + rs2, true, nil
	case decode.SUB:
		return d.Rd, rs1 - rs2, true, nil
	case decode.SLL:
		return d.Rd, rs1 << (rs2 & 0x3f), true, nil
	case decode.SLT:
		return d.Rd, boolU64(int64(rs1) < int64(rs2)), true, nil
	case decode.SLTU:
		return d.Rd, boolU64(rs1 < rs2), true, nil
	case decode.XOR:
		return d.Rd, rs1 ^ rs2, true, nil
	case decode.SRL:
		return d.Rd, rs1 >> (rs2 & 0x3f), true, nil
	case decode.SRA:
		if h.SRAOverride != nil {
			return d.Rd, h.SRAOverride(rs1, rs2&0x3f), true, nil
		}
		return d.Rd, uint64(int64(rs1) >> (rs2 & 0x3f)), true, nil
	case decode.OR:
		return d.Rd, rs1 | rs2, true, nil
	case decode.AND:
		return d.Rd, rs1 & rs2, true, nil

	// --- register-register, 32-bit (W-suffixed) ---
	case decode.ADDW:
		return d.Rd, signExt32(uint32(rs1 + rs2)), true, nil
	case decode.SUBW:
		return d.Rd, signExt32(uint32(rs1 - rs2)), true, nil
	case decode.SLLW:
		return d.Rd, signExt32(uint32(rs1) << (rs2 & 0x1f)), true, nil
	case decode.SRLW:
		return d.Rd, signExt32(uint32(rs1) >> (rs2 & 0x1f)), true, nil
	case decode.SRAW:
		return d.Rd, signExt32(uint32(int32(uint32(rs1)) >> (rs2 & 0x1f))), true, nil

	// --- M extension, 64-bit ---
	case decode.MUL:
		return d.Rd, rs1 * rs2, true, nil
	case decode.MULH:
		return d.Rd, uint64(mulhSigned(int64(rs1), int64(rs2))), true, nil
	case decode.MULHU:
		hi, _ := bits.Mul64(rs1, rs2)
		return d.Rd, hi, true, nil
	case decode.MULHSU:
		return d.Rd, uint64(mulhSU(int64(rs1), rs2)), true, nil
	case decode.DIV:
		if rs2 == 0 {
			h.CSR.SetDZ()
		}
		return d.Rd, uint64(divSigned(int64(rs1), int64(rs2))), true, nil
	case decode.DIVU:
		if rs2 == 0 {
			h.CSR.SetDZ()
		}
		return d.Rd, divUnsigned(rs1, rs2), true, nil
	case decode.REM:
		if rs2 == 0 {
			h.CSR.SetDZ()
		}
		return d.Rd, uint64(remSigned(int64(rs1), int64(rs2))), true, nil
	case decode.REMU:
		if rs2 == 0 {
			h.CSR.SetDZ()
		}
		return d.Rd, remUnsigned(rs1, rs2), true, nil

	// --- M extension, 32-bit ---
	case decode.MULW:
		return d.Rd, signExt32(uint32(rs1) * uint32(rs2)), true, nil
	case decode.DIVW:
		if uint32(rs2) == 0 {
			h.CSR.SetDZ()
		}
		return d.Rd, signExt32(uint32(divSigned(int64(int32(uint32(rs1))), int64(int32(uint32(rs2)))))), true, nil
	case decode.DIVUW:
		if uint32(rs2) == 0 {
			h.CSR.SetDZ()
		}
		return d.Rd, signExt32(uint32(divUnsigned(uint64(uint32(rs1)), uint64(uint32(rs2))))), true, nil
	case decode.REMW:
		if uint32(rs2) == 0 {
			h.CSR.SetDZ()
		}
		return d.Rd, signExt32(uint32(remSigned(int64(int32(uint32(rs1))), int64(int32(uint32(rs2)))))), true, nil
	case decode.REMUW:
		if uint32(rs2) == 0 {
			h.CSR.SetDZ()
		}
		return d.Rd, signExt32(uint32(remUnsigned(uint64(uint32(rs1)), uint64(uint32(rs2))))), true, nil

	// --- register-immediate ---
	case decode.ADDI:
		return d.Rd, rs1 + uint64(d.Imm), true, nil
	case decode.SLTI:
		return d.Rd, boolU64(int64(rs1) < d.Imm), true, nil
	case decode.SLTIU:
		return d.Rd, boolU64(rs1 < uint64(d.Imm)), true, nil
	case decode.XORI:
		return d.Rd, rs1 ^ uint64(d.Imm), true, nil
	case decode.ORI:
		return d.Rd, rs1 | uint64(d.Imm), true, nil
	case decode.ANDI:
		return d.Rd, rs1 & uint64(d.Imm), true, nil
	case decode.SLLI:
		return d.Rd, rs1 << uint(d.Imm&0x3f), true, nil
	case decode.SRLI:
		return d.Rd, rs1 >> uint(d.Imm&0x3f), true, nil
	case decode.SRAI:
		if h.SRAOverride != nil {
			return d.Rd, h.SRAOverride(rs1, uint64(d.Imm&0x3f)), true, nil
		}
		return d.Rd, uint64(int64(rs1) >> uint(d.Imm&0x3f)), true, nil
	case decode.ADDIW:
		return d.Rd, signExt32(uint32(rs1) + uint32(d.Imm)), true, nil
	case decode.SLLIW:
		return d.Rd, signExt32(uint32(rs1) << uint(d.Imm&0x1f)), true, nil
	case decode.SRLIW:
		return d.Rd, signExt32(uint32(rs1) >> uint(d.Imm&0x1f)), true, nil
	case decode.SRAIW:
		return d.Rd, signExt32(uint32(int32(uint32(rs1)) >> uint(d.Imm&0x1f))), true, nil

	// --- upper immediate ---
	case decode.LUI:
		return d.Rd, uint64(d.Imm), true, nil
	case decode.AUIPC:
		return d.Rd, pc + uint64(d.Imm), true, nil

	// --- jumps / branches ---
	case decode.JAL:
		*nextPC = pc + uint64(d.Imm)
		return d.Rd, pc + pcIncrement(h), true, nil
	case decode.JALR:
		target := (rs1 + uint64(d.Imm)) &^ 1
		ret := pc + pcIncrement(h)
		*nextPC = target
		return d.Rd, ret, true, nil
	case decode.BEQ:
		if rs1 == rs2 {
			*nextPC = pc + uint64(d.Imm)
		}
		return 0, 0, false, nil
	case decode.BNE:
		if rs1 != rs2 {
			*nextPC = pc + uint64(d.Imm)
		}
		return 0, 0, false, nil
	case decode.BLT:
		if int64(rs1) < int64(rs2) {
			*nextPC = pc + uint64(d.Imm)
		}
		return 0, 0, false, nil
	case decode.BGE:
		if int64(rs1) >= int64(rs2) {
			*nextPC = pc + uint64(d.Imm)
		}
		return 0, 0, false, nil
	case decode.BLTU:
		if rs1 < rs2 {
			*nextPC = pc + uint64(d.Imm)
		}
		return 0, 0, false, nil
	case decode.BGEU:
		if rs1 >= rs2 {
			*nextPC = pc + uint64(d.Imm)
		}
		return 0, 0, false, nil

	// --- loads / stores ---
	case decode.LB, decode.LH, decode.LW, decode.LBU, decode.LHU, decode.LWU, decode.LD:
		v, e := h.load(rs1+uint64(d.Imm), d.Op)
		if e != nil {
			return 0, 0, false, e
		}
		return d.Rd, v, true, nil
	case decode.SB, decode.SH, decode.SW, decode.SD:
		e := h.store(rs1+uint64(d.Imm), d.Op, rs2)
		return 0, 0, false, e

	// --- fence / system ---
	case decode.FENCE, decode.FENCEI:
		return 0, 0, false, nil
	case decode.ECALL:
		return 0, 0, false, trap.NewEnvironmentCall(h.Mode)
	case decode.EBREAK:
		return 0, 0, false, trap.NewBreakpoint(pc)
	case decode.SRET:
		h.sret()
		return 0, 0, false, nil
	case decode.MRET:
		h.mret()
		return 0, 0, false, nil
	case decode.WFI:
		h.idle = true
		return 0, 0, false, nil
	case decode.SFENCEVMA:
		return 0, 0, false, nil // single-hart, no TLB to model

	// --- Zicsr ---
	case decode.CSRRW, decode.CSRRS, decode.CSRRC, decode.CSRRWI, decode.CSRRSI, decode.CSRRCI:
		return h.executeCSR(d, rs1)

	// --- A extension ---
	case decode.LRW, decode.LRD, decode.SCW, decode.SCD,
		decode.AMOSWAPW, decode.AMOADDW, decode.AMOXORW, decode.AMOANDW, decode.AMOORW,
		decode.AMOMINW, decode.AMOMAXW, decode.AMOMINUW, decode.AMOMAXUW,
		decode.AMOSWAPD, decode.AMOADDD, decode.AMOXORD, decode.AMOANDD, decode.AMOORD,
		decode.AMOMIND, decode.AMOMAXD, decode.AMOMINUD, decode.AMOMAXUD:
		return h.executeAMO(d, rs1, rs2)

	// --- F/D extensions ---
	case decode.FLW, decode.FLD, decode.FSW, decode.FSD:
		return h.executeFPMem(d, rs1, rs2)
	default:
		return h.executeFPCompute(d)
	}
}

func pcIncrement(h *Hart) uint64 {
	if h.lastFetchWasCompressed {
		return 2
	}
	return 4
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func signExt32(v uint32) uint64 { return uint64(int64(int32(v))) }

// mulhSigned computes the high 64 bits of the signed 128-bit product of a
// and b. bits.Mul64 multiplies as unsigned; the standard correction for a
// negative operand subtracts the other operand from the high word, since
// treating a two's-complement negative value as unsigned overcounts the
// product by exactly (2^64 * other-operand).
func mulhSigned(a, b int64) int64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	hi -= uint64(a>>63) & uint64(b)
	hi -= uint64(b>>63) & uint64(a)
	return int64(hi)
}

func mulhSU(a int64, b uint64) int64 {
	hi, _ := bits.Mul64(uint64(a), b)
	hi -= uint64(a>>63) & b
	return int64(hi)
}

func divSigned(a, b int64) int64 {
	if b == 0 {
		return -1
	}
	if a == math.MinInt64 && b == -1 {
		return a
	}
	return a / b
}

func divUnsigned(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

func remSigned(a, b int64) int64 {
	if b == 0 {
		return a
	}
	if a == math.MinInt64 && b == -1 {
		return 0
	}
	return a % b
}

func remUnsigned(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

func (h *Hart) load(addr uint64, op decode.Op) (uint64, *trap.Exception) {
	phys, err := mmu.Translate(&h.CSR, h.Bus, addr, trap.AccessLoad, h.effectiveDataMode())
	if err != nil {
		return 0, err.(*trap.Exception)
	}
	width := map[decode.Op]int{
		decode.LB: 1, decode.LBU: 1,
		decode.LH: 2, decode.LHU: 2,
		decode.LW: 4, decode.LWU: 4,
		decode.LD: 8,
	}[op]
	raw, ok := h.Bus.Load(phys, width)
	if !ok {
		return 0, trap.NewLoadAccessFault(addr)
	}
	switch op {
	case decode.LB:
		return uint64(int64(int8(raw))), nil
	case decode.LH:
		return uint64(int64(int16(raw))), nil
	case decode.LW:
		return uint64(int64(int32(raw))), nil
	default:
		return raw, nil
	}
}

func (h *Hart) store(addr uint64, op decode.Op, value uint64) *trap.Exception {
	phys, err := mmu.Translate(&h.CSR, h.Bus, addr, trap.AccessStore, h.effectiveDataMode())
	if err != nil {
		return err.(*trap.Exception)
	}
	width := map[decode.Op]int{decode.SB: 1, decode.SH: 2, decode.SW: 4, decode.SD: 8}[op]
	if !h.Bus.Store(phys, width, value) {
		return trap.NewStoreAMOAccessFault(addr)
	}
	// A store to the reservation address invalidates any outstanding LR,
	// including one made by this hart itself (single-hart: only
	// self-invalidation is reachable, which is harmless since SC always
	// follows its own LR immediately).
	if h.reservationValid && phys == h.reservationAddr {
		h.reservationValid = false
	}
	return nil
}

func (h *Hart) executeCSR(d decode.Decoded, rs1 uint64) (uint8, uint64, bool, *trap.Exception) {
	addr := uint16(d.Imm)
	old, ok := h.CSR.Read(addr, h.Mode)
	if !ok {
		return 0, 0, false, &trap.Exception{Code: trap.IllegalInstruction, Tval: uint64(d.Bits)}
	}

	var operand uint64
	readsOnly := false
	switch d.Op {
	case decode.CSRRW:
		operand = rs1
	case decode.CSRRS:
		operand = old | rs1
		readsOnly = d.Rs1 == 0
	case decode.CSRRC:
		operand = old &^ rs1
		readsOnly = d.Rs1 == 0
	case decode.CSRRWI:
		operand = uint64(d.Rs1)
	case decode.CSRRSI:
		operand = old | uint64(d.Rs1)
		readsOnly = d.Rs1 == 0
	case decode.CSRRCI:
		operand = old &^ uint64(d.Rs1)
		readsOnly = d.Rs1 == 0
	}

	if !readsOnly {
		if !h.CSR.Write(addr, operand, h.Mode) {
			return 0, 0, false, &trap.Exception{Code: trap.IllegalInstruction, Tval: uint64(d.Bits)}
		}
	}
	return d.Rd, old, true, nil
}

func (h *Hart) executeAMO(d decode.Decoded, rs1, rs2 uint64) (uint8, uint64, bool, *trap.Exception) {
	is64 := amoIs64(d.Op)
	width := 4
	if is64 {
		width = 8
	}

	if rs1%uint64(width) != 0 {
		switch d.Op {
		case decode.LRW, decode.LRD:
			return 0, 0, false, trap.NewLoadAddressMisaligned(rs1)
		default:
			return 0, 0, false, trap.NewStoreAMOAddressMisaligned(rs1)
		}
	}

	phys, err := mmu.Translate(&h.CSR, h.Bus, rs1, trap.AccessStore, h.effectiveDataMode())
	if err != nil {
		return 0, 0, false, err.(*trap.Exception)
	}

	switch d.Op {
	case decode.LRW, decode.LRD:
		raw, ok := h.Bus.Load(phys, width)
		if !ok {
			return 0, 0, false, trap.NewLoadAccessFault(rs1)
		}
		h.reservationValid = true
		h.reservationAddr = phys
		return d.Rd, extend(raw, is64), true, nil
	case decode.SCW, decode.SCD:
		if !h.reservationValid || h.reservationAddr != phys {
			return d.Rd, 1, true, nil // failure
		}
		if !h.Bus.Store(phys, width, rs2) {
			return 0, 0, false, trap.NewStoreAMOAccessFault(rs1)
		}
		h.reservationValid = false
		return d.Rd, 0, true, nil // success
	}

	raw, ok := h.Bus.Load(phys, width)
	if !ok {
		return 0, 0, false, trap.NewLoadAccessFault(rs1)
	}
	old := extend(raw, is64)
	var result uint64
	switch d.Op {
	case decode.AMOSWAPW, decode.AMOSWAPD:
		result = rs2
	case decode.AMOADDW, decode.AMOADDD:
		result = old + rs2
	case decode.AMOXORW, decode.AMOXORD:
		result = old ^ rs2
	case decode.AMOANDW, decode.AMOANDD:
		result = old & rs2
	case decode.AMOORW, decode.AMOORD:
		result = old | rs2
	case decode.AMOMINW, decode.AMOMIND:
		result = uint64(minI64(int64(old), int64(rs2)))
	case decode.AMOMAXW, decode.AMOMAXD:
		result = uint64(maxI64(int64(old), int64(rs2)))
	case decode.AMOMINUW, decode.AMOMINUD:
		result = minU64(old, rs2)
	case decode.AMOMAXUW, decode.AMOMAXUD:
		result = maxU64(old, rs2)
	}
	if !h.Bus.Store(phys, width, result) {
		return 0, 0, false, trap.NewStoreAMOAccessFault(rs1)
	}
	if h.reservationValid && phys == h.reservationAddr {
		h.reservationValid = false
	}
	return d.Rd, old, true, nil
}

func amoIs64(op decode.Op) bool {
	switch op {
	case decode.LRD, decode.SCD, decode.AMOSWAPD, decode.AMOADDD, decode.AMOXORD,
		decode.AMOANDD, decode.AMOORD, decode.AMOMIND, decode.AMOMAXD, decode.AMOMINUD, decode.AMOMAXUD:
		return true
	default:
		return false
	}
}

func extend(raw uint64, is64 bool) uint64 {
	if is64 {
		return raw
	}
	return uint64(int64(int32(uint32(raw))))
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

