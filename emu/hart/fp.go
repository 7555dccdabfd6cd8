package hart

import (
	"math"

	"github.com/Clo91eaf/hemu/emu/decode"
	"github.com/Clo91eaf/hemu/emu/mmu"
	"github.com/Clo91eaf/hemu/emu/trap"
)

// executeFPMem handles the four floating-point load/store instructions.
// They carry no trap-relevant rounding mode and write/read the FPR file
// directly rather than going through GPR, so they are kept out of the
// integer load/store path in execute.go.
func (h *Hart) executeFPMem(d decode.Decoded, rs1, rs2 uint64) (uint8, uint64, bool, *trap.Exception) {
	addr := rs1 + uint64(d.Imm)
	switch d.Op {
	case decode.FLW:
		phys, err := mmu.Translate(&h.CSR, h.Bus, addr, trap.AccessLoad, h.effectiveDataMode())
		if err != nil {
			return 0, 0, false, err.(*trap.Exception)
		}
		raw, ok := h.Bus.Load(phys, 4)
		if !ok {
			return 0, 0, false, trap.NewLoadAccessFault(addr)
		}
		h.FPR.WriteFloat32(d.Rd, math.Float32frombits(uint32(raw)))
		return 0, 0, false, nil
	case decode.FLD:
		phys, err := mmu.Translate(&h.CSR, h.Bus, addr, trap.AccessLoad, h.effectiveDataMode())
		if err != nil {
			return 0, 0, false, err.(*trap.Exception)
		}
		raw, ok := h.Bus.Load(phys, 8)
		if !ok {
			return 0, 0, false, trap.NewLoadAccessFault(addr)
		}
		h.FPR.WriteDouble(d.Rd, raw)
		return 0, 0, false, nil
	case decode.FSW:
		phys, err := mmu.Translate(&h.CSR, h.Bus, addr, trap.AccessStore, h.effectiveDataMode())
		if err != nil {
			return 0, 0, false, err.(*trap.Exception)
		}
		bits := uint64(math.Float32bits(h.FPR.ReadFloat32(d.Rs2)))
		if !h.Bus.Store(phys, 4, bits) {
			return 0, 0, false, trap.NewStoreAMOAccessFault(addr)
		}
		return 0, 0, false, nil
	case decode.FSD:
		phys, err := mmu.Translate(&h.CSR, h.Bus, addr, trap.AccessStore, h.effectiveDataMode())
		if err != nil {
			return 0, 0, false, err.(*trap.Exception)
		}
		if !h.Bus.Store(phys, 8, h.FPR.ReadDouble(d.Rs2)) {
			return 0, 0, false, trap.NewStoreAMOAccessFault(addr)
		}
		return 0, 0, false, nil
	}
	_ = rs2
	return 0, 0, false, &trap.Exception{Code: trap.IllegalInstruction, Tval: uint64(d.Bits)}
}

// executeFPCompute handles every F/D-extension arithmetic, conversion,
// comparison, sign-injection, classification, and move instruction.
// Neither the instruction's rm field nor frm is read: every result uses
// Go's math operations, which always round to nearest-even, and an invalid
// rounding mode is not rejected.
func (h *Hart) executeFPCompute(d decode.Decoded) (uint8, uint64, bool, *trap.Exception) {
	switch d.Op {
	case decode.FADDS:
		h.FPR.WriteFloat32(d.Rd, h.FPR.ReadFloat32(d.Rs1)+h.FPR.ReadFloat32(d.Rs2))
	case decode.FSUBS:
		h.FPR.WriteFloat32(d.Rd, h.FPR.ReadFloat32(d.Rs1)-h.FPR.ReadFloat32(d.Rs2))
	case decode.FMULS:
		h.FPR.WriteFloat32(d.Rd, h.FPR.ReadFloat32(d.Rs1)*h.FPR.ReadFloat32(d.Rs2))
	case decode.FDIVS:
		b := h.FPR.ReadFloat32(d.Rs2)
		if b == 0 {
			h.CSR.SetDZ()
		}
		h.FPR.WriteFloat32(d.Rd, h.FPR.ReadFloat32(d.Rs1)/b)
	case decode.FSQRTS:
		h.FPR.WriteFloat32(d.Rd, float32(math.Sqrt(float64(h.FPR.ReadFloat32(d.Rs1)))))
	case decode.FSGNJS:
		h.FPR.WriteFloat32(d.Rd, sgnj32(h.FPR.ReadFloat32(d.Rs1), h.FPR.ReadFloat32(d.Rs2), false, false))
	case decode.FSGNJNS:
		h.FPR.WriteFloat32(d.Rd, sgnj32(h.FPR.ReadFloat32(d.Rs1), h.FPR.ReadFloat32(d.Rs2), true, false))
	case decode.FSGNJXS:
		h.FPR.WriteFloat32(d.Rd, sgnj32(h.FPR.ReadFloat32(d.Rs1), h.FPR.ReadFloat32(d.Rs2), false, true))
	case decode.FMINS:
		h.FPR.WriteFloat32(d.Rd, fmin32(h.FPR.ReadFloat32(d.Rs1), h.FPR.ReadFloat32(d.Rs2)))
	case decode.FMAXS:
		h.FPR.WriteFloat32(d.Rd, fmax32(h.FPR.ReadFloat32(d.Rs1), h.FPR.ReadFloat32(d.Rs2)))
	case decode.FCVTWS:
		return d.Rd, uint64(int64(int32(h.FPR.ReadFloat32(d.Rs1)))), true, nil
	case decode.FCVTWUS:
		return d.Rd, uint64(int64(uint32(h.FPR.ReadFloat32(d.Rs1)))), true, nil
	case decode.FCVTLS:
		return d.Rd, uint64(int64(h.FPR.ReadFloat32(d.Rs1))), true, nil
	case decode.FCVTLUS:
		return d.Rd, uint64(h.FPR.ReadFloat32(d.Rs1)), true, nil
	case decode.FMVXW:
		return d.Rd, uint64(int64(int32(uint32(h.FPR.ReadDouble(d.Rs1))))), true, nil
	case decode.FEQS:
		return d.Rd, boolU64(h.FPR.ReadFloat32(d.Rs1) == h.FPR.ReadFloat32(d.Rs2)), true, nil
	case decode.FLTS:
		return d.Rd, boolU64(h.FPR.ReadFloat32(d.Rs1) < h.FPR.ReadFloat32(d.Rs2)), true, nil
	case decode.FLES:
		return d.Rd, boolU64(h.FPR.ReadFloat32(d.Rs1) <= h.FPR.ReadFloat32(d.Rs2)), true, nil
	case decode.FCLASSS:
		return d.Rd, classify32(h.FPR.ReadFloat32(d.Rs1)), true, nil
	case decode.FCVTSW:
		h.FPR.WriteFloat32(d.Rd, float32(int32(h.GPR.Read(d.Rs1))))
	case decode.FCVTSWU:
		h.FPR.WriteFloat32(d.Rd, float32(uint32(h.GPR.Read(d.Rs1))))
	case decode.FMVWX:
		h.FPR.WriteFloat32(d.Rd, math.Float32frombits(uint32(h.GPR.Read(d.Rs1))))
	case decode.FCVTSL:
		h.FPR.WriteFloat32(d.Rd, float32(int64(h.GPR.Read(d.Rs1))))
	case decode.FCVTSLU:
		h.FPR.WriteFloat32(d.Rd, float32(h.GPR.Read(d.Rs1)))

	case decode.FADDD:
		h.FPR.WriteFloat64(d.Rd, h.FPR.ReadFloat64(d.Rs1)+h.FPR.ReadFloat64(d.Rs2))
	case decode.FSUBD:
		h.FPR.WriteFloat64(d.Rd, h.FPR.ReadFloat64(d.Rs1)-h.FPR.ReadFloat64(d.Rs2))
	case decode.FMULD:
		h.FPR.WriteFloat64(d.Rd, h.FPR.ReadFloat64(d.Rs1)*h.FPR.ReadFloat64(d.Rs2))
	case decode.FDIVD:
		b := h.FPR.ReadFloat64(d.Rs2)
		if b == 0 {
			h.CSR.SetDZ()
		}
		h.FPR.WriteFloat64(d.Rd, h.FPR.ReadFloat64(d.Rs1)/b)
	case decode.FSQRTD:
		h.FPR.WriteFloat64(d.Rd, math.Sqrt(h.FPR.ReadFloat64(d.Rs1)))
	case decode.FSGNJD:
		h.FPR.WriteFloat64(d.Rd, sgnj64(h.FPR.ReadFloat64(d.Rs1), h.FPR.ReadFloat64(d.Rs2), false, false))
	case decode.FSGNJND:
		h.FPR.WriteFloat64(d.Rd, sgnj64(h.FPR.ReadFloat64(d.Rs1), h.FPR.ReadFloat64(d.Rs2), true, false))
	case decode.FSGNJXD:
		h.FPR.WriteFloat64(d.Rd, sgnj64(h.FPR.ReadFloat64(d.Rs1), h.FPR.ReadFloat64(d.Rs2), false, true))
	case decode.FMIND:
		h.FPR.WriteFloat64(d.Rd, fmin64(h.FPR.ReadFloat64(d.Rs1), h.FPR.ReadFloat64(d.Rs2)))
	case decode.FMAXD:
		h.FPR.WriteFloat64(d.Rd, fmax64(h.FPR.ReadFloat64(d.Rs1), h.FPR.ReadFloat64(d.Rs2)))
	case decode.FCVTSD:
		h.FPR.WriteFloat32(d.Rd, float32(h.FPR.ReadFloat64(d.Rs1)))
	case decode.FCVTDS:
		h.FPR.WriteFloat64(d.Rd, float64(h.FPR.ReadFloat32(d.Rs1)))
	case decode.FEQD:
		return d.Rd, boolU64(h.FPR.ReadFloat64(d.Rs1) == h.FPR.ReadFloat64(d.Rs2)), true, nil
	case decode.FLTD:
		return d.Rd, boolU64(h.FPR.ReadFloat64(d.Rs1) < h.FPR.ReadFloat64(d.Rs2)), true, nil
	case decode.FLED:
		return d.Rd, boolU64(h.FPR.ReadFloat64(d.Rs1) <= h.FPR.ReadFloat64(d.Rs2)), true, nil
	case decode.FCLASSD:
		return d.Rd, classify64(h.FPR.ReadFloat64(d.Rs1)), true, nil
	case decode.FCVTWD:
		return d.Rd, uint64(int64(int32(h.FPR.ReadFloat64(d.Rs1)))), true, nil
	case decode.FCVTWUD:
		return d.Rd, uint64(int64(uint32(h.FPR.ReadFloat64(d.Rs1)))), true, nil
	case decode.FCVTLD:
		return d.Rd, uint64(int64(h.FPR.ReadFloat64(d.Rs1))), true, nil
	case decode.FCVTLUD:
		return d.Rd, uint64(h.FPR.ReadFloat64(d.Rs1)), true, nil
	case decode.FMVXD:
		return d.Rd, h.FPR.ReadDouble(d.Rs1), true, nil
	case decode.FCVTDW:
		h.FPR.WriteFloat64(d.Rd, float64(int32(h.GPR.Read(d.Rs1))))
	case decode.FCVTDWU:
		h.FPR.WriteFloat64(d.Rd, float64(uint32(h.GPR.Read(d.Rs1))))
	case decode.FCVTDL:
		h.FPR.WriteFloat64(d.Rd, float64(int64(h.GPR.Read(d.Rs1))))
	case decode.FCVTDLU:
		h.FPR.WriteFloat64(d.Rd, float64(h.GPR.Read(d.Rs1)))
	case decode.FMVDX:
		h.FPR.WriteDouble(d.Rd, h.GPR.Read(d.Rs1))

	default:
		return 0, 0, false, &trap.Exception{Code: trap.IllegalInstruction, Tval: uint64(d.Bits)}
	}
	return 0, 0, false, nil
}

func sgnj32(a, b float32, negate, xor bool) float32 {
	abits := math.Float32bits(a) &^ (1 << 31)
	bsign := math.Float32bits(b) & (1 << 31)
	if negate {
		bsign ^= 1 << 31
	}
	if xor {
		bsign = (math.Float32bits(a) & (1 << 31)) ^ (math.Float32bits(b) & (1 << 31))
	}
	return math.Float32frombits(abits | bsign)
}

func sgnj64(a, b float64, negate, xor bool) float64 {
	abits := math.Float64bits(a) &^ (1 << 63)
	bsign := math.Float64bits(b) & (1 << 63)
	if negate {
		bsign ^= 1 << 63
	}
	if xor {
		bsign = (math.Float64bits(a) & (1 << 63)) ^ (math.Float64bits(b) & (1 << 63))
	}
	return math.Float64frombits(abits | bsign)
}

func fmin32(a, b float32) float32 {
	if math.IsNaN(float64(a)) {
		return b
	}
	if math.IsNaN(float64(b)) {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func fmax32(a, b float32) float32 {
	if math.IsNaN(float64(a)) {
		return b
	}
	if math.IsNaN(float64(b)) {
		return a
	}
	if a > b {
		return a
	}
	return b
}

func fmin64(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func fmax64(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	if a > b {
		return a
	}
	return b
}

func classify32(v float32) uint64 {
	bits := math.Float32bits(v)
	sign := bits>>31 != 0
	switch {
	case math.IsNaN(float64(v)):
		if bits&(1<<22) != 0 {
			return 1 << 9 // quiet NaN
		}
		return 1 << 8 // signaling NaN
	case math.IsInf(float64(v), 1):
		return 1 << 7
	case math.IsInf(float64(v), -1):
		return 1 << 0
	case v == 0:
		if sign {
			return 1 << 3
		}
		return 1 << 4
	default:
		subnormal := bits&0x7f800000 == 0
		switch {
		case sign && subnormal:
			return 1 << 2
		case sign:
			return 1 << 1
		case subnormal:
			return 1 << 5
		default:
			return 1 << 6
		}
	}
}

func classify64(v float64) uint64 {
	bits := math.Float64bits(v)
	sign := bits>>63 != 0
	switch {
	case math.IsNaN(v):
		if bits&(1<<51) != 0 {
			return 1 << 9
		}
		return 1 << 8
	case math.IsInf(v, 1):
		return 1 << 7
	case math.IsInf(v, -1):
		return 1 << 0
	case v == 0:
		if sign {
			return 1 << 3
		}
		return 1 << 4
	default:
		subnormal := bits&0x7ff0000000000000 == 0
		switch {
		case sign && subnormal:
			return 1 << 2
		case sign:
			return 1 << 1
		case subnormal:
			return 1 << 5
		default:
			return 1 << 6
		}
	}
}
