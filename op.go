package wasmfxtime

import "fmt"

// LaneType is the interpretation of one fixed-width element of a 128-bit
// vector value.
type LaneType uint8

const (
	LaneInvalid LaneType = iota
	LaneI8
	LaneI16
	LaneI32
	LaneF32
	LaneF64
)

func (l LaneType) String() string {
	switch l {
	case LaneI8:
		return "i8"
	case LaneI16:
		return "i16"
	case LaneI32:
		return "i32"
	case LaneF32:
		return "f32"
	case LaneF64:
		return "f64"
	default:
		return "invalid"
	}
}

// Opcode identifies one relaxed SIMD operation.
type Opcode uint8

const (
	OpRelaxedTruncF32x4S Opcode = iota
	OpRelaxedTruncF32x4U
	OpRelaxedTruncF64x2SZero
	OpRelaxedTruncF64x2UZero
	OpRelaxedDotI8x16I7x16S
	OpRelaxedDotI8x16I7x16AddS
	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpRelaxedTruncF32x4S:       "i32x4.relaxed_trunc_f32x4_s",
	OpRelaxedTruncF32x4U:       "i32x4.relaxed_trunc_f32x4_u",
	OpRelaxedTruncF64x2SZero:   "i32x4.relaxed_trunc_f64x2_s_zero",
	OpRelaxedTruncF64x2UZero:   "i32x4.relaxed_trunc_f64x2_u_zero",
	OpRelaxedDotI8x16I7x16S:    "i16x8.relaxed_dot_i8x16_i7x16_s",
	OpRelaxedDotI8x16I7x16AddS: "i32x4.relaxed_dot_i8x16_i7x16_add_s",
}

func (o Opcode) String() string {
	if o >= numOpcodes {
		return fmt.Sprintf("opcode(%d)", uint8(o))
	}
	return opcodeNames[o]
}

// OpcodeByName looks up an opcode by its text-format mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return Opcode(op), true
		}
	}
	return 0, false
}

// OpDesc is the normalized, target-independent description of one relaxed
// SIMD opcode: identity, operand lane interpretations, and result lane type.
type OpDesc struct {
	Op       Opcode
	Operands []LaneType
	Result   LaneType
}

// Arity is the number of operand bindings the opcode requires.
func (d OpDesc) Arity() int { return len(d.Operands) }

// opSignatures fixes the declared shape of every opcode. Operand order
// follows the wasm text format: for the dot products the first operand is the
// full signed i8 vector and the second is the 7-bit one; the accumulate form
// takes the i32x4 accumulator last.
var opSignatures = [numOpcodes]OpDesc{
	OpRelaxedTruncF32x4S:       {Op: OpRelaxedTruncF32x4S, Operands: []LaneType{LaneF32}, Result: LaneI32},
	OpRelaxedTruncF32x4U:       {Op: OpRelaxedTruncF32x4U, Operands: []LaneType{LaneF32}, Result: LaneI32},
	OpRelaxedTruncF64x2SZero:   {Op: OpRelaxedTruncF64x2SZero, Operands: []LaneType{LaneF64}, Result: LaneI32},
	OpRelaxedTruncF64x2UZero:   {Op: OpRelaxedTruncF64x2UZero, Operands: []LaneType{LaneF64}, Result: LaneI32},
	OpRelaxedDotI8x16I7x16S:    {Op: OpRelaxedDotI8x16I7x16S, Operands: []LaneType{LaneI8, LaneI8}, Result: LaneI16},
	OpRelaxedDotI8x16I7x16AddS: {Op: OpRelaxedDotI8x16I7x16AddS, Operands: []LaneType{LaneI8, LaneI8, LaneI32}, Result: LaneI32},
}

// VReg is a vector register binding supplied by the caller: xmm0..xmm15 on
// x86-64, v0..v31 on AArch64.
type VReg uint8

// Operand is one live value reference attached to an IR node.
type Operand struct {
	Reg  VReg
	Lane LaneType
}

// Node is one relaxed SIMD operation as delivered by the upstream IR: opcode
// identity, already-type-checked operand bindings, and the result binding.
type Node struct {
	Op     Opcode
	Args   []Operand
	Result VReg
}

// Classify validates a node against its opcode's declared signature and
// returns the operation descriptor. The result register must not alias any
// operand register: templates may write the result before reading later
// operands. A mismatch means upstream type checking is broken; the returned
// InvalidOperandError is fatal by contract.
func Classify(n Node) (OpDesc, error) {
	if n.Op >= numOpcodes {
		return OpDesc{}, &InvalidOperandError{Op: n.Op, Reason: "unknown opcode"}
	}
	sig := opSignatures[n.Op]
	if len(n.Args) != len(sig.Operands) {
		return OpDesc{}, &InvalidOperandError{
			Op:     n.Op,
			Reason: fmt.Sprintf("arity mismatch: got %d operands, want %d", len(n.Args), len(sig.Operands)),
		}
	}
	for i, want := range sig.Operands {
		if n.Args[i].Lane != want {
			return OpDesc{}, &InvalidOperandError{
				Op:     n.Op,
				Reason: fmt.Sprintf("operand %d has lane type %s, want %s", i, n.Args[i].Lane, want),
			}
		}
	}
	for i, a := range n.Args {
		if a.Reg == n.Result {
			return OpDesc{}, &InvalidOperandError{
				Op:     n.Op,
				Reason: fmt.Sprintf("result register v%d aliases operand %d", n.Result, i),
			}
		}
	}
	return sig, nil
}
