// Package disassemble renders a decoded instruction as a RISC-V assembly
// mnemonic, following the teacher's disassembler shape of a name/format
// lookup table keyed by operation rather than a big switch of format
// strings.
package disassemble

import (
	"fmt"

	"github.com/Clo91eaf/hemu/emu/decode"
)

type format int

const (
	fmtR format = iota
	fmtI
	fmtIArith
	fmtIShift
	fmtS
	fmtB
	fmtJ
	fmtU
	fmtCSR
	fmtCSRI
	fmtNone
	fmtFR
	fmtFR2
	fmtFRS
	fmtFRD
	fmtFLoad
	fmtFStore
)

type entry struct {
	name string
	fmt  format
}

var table = map[decode.Op]entry{
	decode.ADD: {"add", fmtR}, decode.SUB: {"sub", fmtR}, decode.SLL: {"sll", fmtR},
	decode.SLT: {"slt", fmtR}, decode.SLTU: {"sltu", fmtR}, decode.XOR: {"xor", fmtR},
	decode.SRL: {"srl", fmtR}, decode.SRA: {"sra", fmtR}, decode.OR: {"or", fmtR}, decode.AND: {"and", fmtR},
	decode.ADDW: {"addw", fmtR}, decode.SUBW: {"subw", fmtR}, decode.SLLW: {"sllw", fmtR},
	decode.SRLW: {"srlw", fmtR}, decode.SRAW: {"sraw", fmtR},

	decode.MUL: {"mul", fmtR}, decode.MULH: {"mulh", fmtR}, decode.MULHSU: {"mulhsu", fmtR},
	decode.MULHU: {"mulhu", fmtR}, decode.DIV: {"div", fmtR}, decode.DIVU: {"divu", fmtR},
	decode.REM: {"rem", fmtR}, decode.REMU: {"remu", fmtR},
	decode.MULW: {"mulw", fmtR}, decode.DIVW: {"divw", fmtR}, decode.DIVUW: {"divuw", fmtR},
	decode.REMW: {"remw", fmtR}, decode.REMUW: {"remuw", fmtR},

	decode.ADDI: {"addi", fmtIArith}, decode.SLTI: {"slti", fmtIArith}, decode.SLTIU: {"sltiu", fmtIArith},
	decode.XORI: {"xori", fmtIArith}, decode.ORI: {"ori", fmtIArith}, decode.ANDI: {"andi", fmtIArith},
	decode.SLLI: {"slli", fmtIShift}, decode.SRLI: {"srli", fmtIShift}, decode.SRAI: {"srai", fmtIShift},
	decode.ADDIW: {"addiw", fmtIArith}, decode.SLLIW: {"slliw", fmtIShift}, decode.SRLIW: {"srliw", fmtIShift},
	decode.SRAIW: {"sraiw", fmtIShift},

	decode.LB: {"lb", fmtI}, decode.LH: {"lh", fmtI}, decode.LW: {"lw", fmtI},
	decode.LBU: {"lbu", fmtI}, decode.LHU: {"lhu", fmtI}, decode.LWU: {"lwu", fmtI}, decode.LD: {"ld", fmtI},

	decode.SB: {"sb", fmtS}, decode.SH: {"sh", fmtS}, decode.SW: {"sw", fmtS}, decode.SD: {"sd", fmtS},

	decode.BEQ: {"beq", fmtB}, decode.BNE: {"bne", fmtB}, decode.BLT: {"blt", fmtB},
	decode.BGE: {"bge", fmtB}, decode.BLTU: {"bltu", fmtB}, decode.BGEU: {"bgeu", fmtB},

	decode.JAL: {"jal", fmtJ}, decode.JALR: {"jalr", fmtI},
	decode.LUI: {"lui", fmtU}, decode.AUIPC: {"auipc", fmtU},

	decode.ECALL: {"ecall", fmtNone}, decode.EBREAK: {"ebreak", fmtNone},
	decode.FENCE: {"fence", fmtNone}, decode.FENCEI: {"fence.i", fmtNone},
	decode.SRET: {"sret", fmtNone}, decode.MRET: {"mret", fmtNone}, decode.WFI: {"wfi", fmtNone},
	decode.SFENCEVMA: {"sfence.vma", fmtNone},

	decode.CSRRW: {"csrrw", fmtCSR}, decode.CSRRS: {"csrrs", fmtCSR}, decode.CSRRC: {"csrrc", fmtCSR},
	decode.CSRRWI: {"csrrwi", fmtCSRI}, decode.CSRRSI: {"csrrsi", fmtCSRI}, decode.CSRRCI: {"csrrci", fmtCSRI},

	decode.LRW: {"lr.w", fmtFR}, decode.LRD: {"lr.d", fmtFR}, decode.SCW: {"sc.w", fmtR}, decode.SCD: {"sc.d", fmtR},
	decode.AMOSWAPW: {"amoswap.w", fmtR}, decode.AMOADDW: {"amoadd.w", fmtR}, decode.AMOXORW: {"amoxor.w", fmtR},
	decode.AMOANDW: {"amoand.w", fmtR}, decode.AMOORW: {"amoor.w", fmtR}, decode.AMOMINW: {"amomin.w", fmtR},
	decode.AMOMAXW: {"amomax.w", fmtR}, decode.AMOMINUW: {"amominu.w", fmtR}, decode.AMOMAXUW: {"amomaxu.w", fmtR},
	decode.AMOSWAPD: {"amoswap.d", fmtR}, decode.AMOADDD: {"amoadd.d", fmtR}, decode.AMOXORD: {"amoxor.d", fmtR},
	decode.AMOANDD: {"amoand.d", fmtR}, decode.AMOORD: {"amoor.d", fmtR}, decode.AMOMIND: {"amomin.d", fmtR},
	decode.AMOMAXD: {"amomax.d", fmtR}, decode.AMOMINUD: {"amominu.d", fmtR}, decode.AMOMAXUD: {"amomaxu.d", fmtR},

	decode.FLW: {"flw", fmtFLoad}, decode.FLD: {"fld", fmtFLoad},
	decode.FSW: {"fsw", fmtFStore}, decode.FSD: {"fsd", fmtFStore},
	decode.FADDS: {"fadd.s", fmtFR}, decode.FSUBS: {"fsub.s", fmtFR}, decode.FMULS: {"fmul.s", fmtFR},
	decode.FDIVS: {"fdiv.s", fmtFR}, decode.FSQRTS: {"fsqrt.s", fmtFR2},
	decode.FSGNJS: {"fsgnj.s", fmtFR}, decode.FSGNJNS: {"fsgnjn.s", fmtFR}, decode.FSGNJXS: {"fsgnjx.s", fmtFR},
	decode.FMINS: {"fmin.s", fmtFR}, decode.FMAXS: {"fmax.s", fmtFR},
	decode.FCVTWS: {"fcvt.w.s", fmtFRS}, decode.FCVTWUS: {"fcvt.wu.s", fmtFRS}, decode.FMVXW: {"fmv.x.w", fmtFRS},
	decode.FEQS: {"feq.s", fmtFRS}, decode.FLTS: {"flt.s", fmtFRS}, decode.FLES: {"fle.s", fmtFRS},
	decode.FCLASSS: {"fclass.s", fmtFRS},
	decode.FCVTSW: {"fcvt.s.w", fmtFRD}, decode.FCVTSWU: {"fcvt.s.wu", fmtFRD}, decode.FMVWX: {"fmv.w.x", fmtFRD},
	decode.FCVTLS: {"fcvt.l.s", fmtFRS}, decode.FCVTLUS: {"fcvt.lu.s", fmtFRS},
	decode.FCVTSL: {"fcvt.s.l", fmtFRD}, decode.FCVTSLU: {"fcvt.s.lu", fmtFRD},

	decode.FADDD: {"fadd.d", fmtFR}, decode.FSUBD: {"fsub.d", fmtFR}, decode.FMULD: {"fmul.d", fmtFR},
	decode.FDIVD: {"fdiv.d", fmtFR}, decode.FSQRTD: {"fsqrt.d", fmtFR2},
	decode.FSGNJD: {"fsgnj.d", fmtFR}, decode.FSGNJND: {"fsgnjn.d", fmtFR}, decode.FSGNJXD: {"fsgnjx.d", fmtFR},
	decode.FMIND: {"fmin.d", fmtFR}, decode.FMAXD: {"fmax.d", fmtFR},
	decode.FCVTSD: {"fcvt.s.d", fmtFR2}, decode.FCVTDS: {"fcvt.d.s", fmtFR2},
	decode.FEQD: {"feq.d", fmtFRS}, decode.FLTD: {"flt.d", fmtFRS}, decode.FLED: {"fle.d", fmtFRS},
	decode.FCLASSD: {"fclass.d", fmtFRS},
	decode.FCVTWD: {"fcvt.w.d", fmtFRS}, decode.FCVTWUD: {"fcvt.wu.d", fmtFRS},
	decode.FCVTDW: {"fcvt.d.w", fmtFRD}, decode.FCVTDWU: {"fcvt.d.wu", fmtFRD},
	decode.FCVTLD: {"fcvt.l.d", fmtFRS}, decode.FCVTLUD: {"fcvt.lu.d", fmtFRS}, decode.FMVXD: {"fmv.x.d", fmtFRS},
	decode.FCVTDL: {"fcvt.d.l", fmtFRD}, decode.FCVTDLU: {"fcvt.d.lu", fmtFRD}, decode.FMVDX: {"fmv.d.x", fmtFRD},
}

// gprNames are the ABI register names, in index order.
var gprNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

func gpr(i uint8) string { return gprNames[i&31] }
func fpr(i uint8) string { return fmt.Sprintf("f%d", i&31) }

// Instruction renders d as assembly text. pc is used only to compute the
// absolute target for branch/jump display.
func Instruction(d decode.Decoded, pc uint64) string {
	e, ok := table[d.Op]
	if !ok {
		return fmt.Sprintf("unknown 0x%08x", d.Bits)
	}
	switch e.fmt {
	case fmtR:
		return fmt.Sprintf("%s %s, %s, %s", e.name, gpr(d.Rd), gpr(d.Rs1), gpr(d.Rs2))
	case fmtI:
		return fmt.Sprintf("%s %s, %d(%s)", e.name, gpr(d.Rd), d.Imm, gpr(d.Rs1))
	case fmtIArith, fmtIShift:
		return fmt.Sprintf("%s %s, %s, %d", e.name, gpr(d.Rd), gpr(d.Rs1), d.Imm)
	case fmtS:
		return fmt.Sprintf("%s %s, %d(%s)", e.name, gpr(d.Rs2), d.Imm, gpr(d.Rs1))
	case fmtB:
		return fmt.Sprintf("%s %s, %s, 0x%x", e.name, gpr(d.Rs1), gpr(d.Rs2), pc+uint64(d.Imm))
	case fmtJ:
		return fmt.Sprintf("%s %s, 0x%x", e.name, gpr(d.Rd), pc+uint64(d.Imm))
	case fmtU:
		return fmt.Sprintf("%s %s, 0x%x", e.name, gpr(d.Rd), uint64(d.Imm)>>12)
	case fmtCSR:
		return fmt.Sprintf("%s %s, 0x%x, %s", e.name, gpr(d.Rd), uint16(d.Imm), gpr(d.Rs1))
	case fmtCSRI:
		return fmt.Sprintf("%s %s, 0x%x, %d", e.name, gpr(d.Rd), uint16(d.Imm), d.Rs1)
	case fmtFR:
		return fmt.Sprintf("%s %s, %s, %s", e.name, fpr(d.Rd), fpr(d.Rs1), fpr(d.Rs2))
	case fmtFR2:
		return fmt.Sprintf("%s %s, %s", e.name, fpr(d.Rd), fpr(d.Rs1))
	case fmtFRS:
		return fmt.Sprintf("%s %s, %s", e.name, gpr(d.Rd), fpr(d.Rs1))
	case fmtFRD:
		return fmt.Sprintf("%s %s, %s", e.name, fpr(d.Rd), gpr(d.Rs1))
	case fmtFLoad:
		return fmt.Sprintf("%s %s, %d(%s)", e.name, fpr(d.Rd), d.Imm, gpr(d.Rs1))
	case fmtFStore:
		return fmt.Sprintf("%s %s, %d(%s)", e.name, fpr(d.Rs2), d.Imm, gpr(d.Rs1))
	default:
		return e.name
	}
}
