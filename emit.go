package wasmfxtime

import (
	"fmt"
	"strings"
)

// Instr is one fully bound instruction: a mnemonic plus concrete operand
// text, ready for the downstream encoder.
type Instr struct {
	Mnemonic string
	Args     []string
}

func (i Instr) String() string {
	if len(i.Args) == 0 {
		return i.Mnemonic
	}
	return i.Mnemonic + " " + strings.Join(i.Args, ", ")
}

// ConstPool collects the 16-byte constants a function's code references.
// The pool belongs to the emitted function and is handed to the encoder with
// it; code addresses entries only by symbolic name.
type ConstPool struct {
	names  []string
	values map[string][16]byte
}

func newConstPool() *ConstPool {
	return &ConstPool{values: map[string][16]byte{}}
}

// Ref records a named constant (idempotently) and returns its name.
func (p *ConstPool) Ref(name string, value [16]byte) string {
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
		p.values[name] = value
	}
	return name
}

// Names returns entry names in first-reference order.
func (p *ConstPool) Names() []string { return p.names }

// Value returns the bytes of a pooled constant.
func (p *ConstPool) Value(name string) ([16]byte, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Sequence is the lowered output for one function: the bound instruction
// stream bracketed by the fixed prologue/epilogue, plus the function's
// constant pool. It is produced per function and not retained here.
type Sequence struct {
	Name   string
	Instrs []Instr
	Pool   *ConstPool
}

const (
	amd64VecRegs = 16
	arm64VecRegs = 32
)

func vecRegCount(arch Arch) int {
	if arch == ArchARM64 {
		return arm64VecRegs
	}
	return amd64VecRegs
}

func vregName(arch Arch, r VReg, arr string) string {
	if arch == ArchARM64 {
		if arr == "" {
			return fmt.Sprintf("v%d", r)
		}
		return fmt.Sprintf("v%d.%s", r, arr)
	}
	return fmt.Sprintf("%%xmm%d", r)
}

func appendPrologue(arch Arch, seq *Sequence) {
	switch arch {
	case ArchAMD64:
		seq.Instrs = append(seq.Instrs,
			Instr{Mnemonic: "pushq", Args: []string{"%rbp"}},
			Instr{Mnemonic: "movq", Args: []string{"%rsp", "%rbp"}},
		)
	case ArchARM64:
		seq.Instrs = append(seq.Instrs,
			Instr{Mnemonic: "stp", Args: []string{"x29", "x30", "[sp, #-16]!"}},
			Instr{Mnemonic: "mov", Args: []string{"x29", "sp"}},
		)
	}
}

func appendEpilogue(arch Arch, seq *Sequence) {
	switch arch {
	case ArchAMD64:
		seq.Instrs = append(seq.Instrs,
			Instr{Mnemonic: "movq", Args: []string{"%rbp", "%rsp"}},
			Instr{Mnemonic: "popq", Args: []string{"%rbp"}},
			Instr{Mnemonic: "retq"},
		)
	case ArchARM64:
		seq.Instrs = append(seq.Instrs,
			Instr{Mnemonic: "ldp", Args: []string{"x29", "x30", "[sp], #16"}},
			Instr{Mnemonic: "ret"},
		)
	}
}

// allocScratch picks n vector registers disjoint from the live operand and
// result registers, lowest number first. Scratch counts are small fixed
// constants, so the pool cannot be exhausted for a well-formed rule.
func allocScratch(arch Arch, n int, live []VReg) ([]VReg, error) {
	if n == 0 {
		return nil, nil
	}
	limit := vecRegCount(arch)
	var used uint32
	for _, r := range live {
		used |= 1 << r
	}
	regs := make([]VReg, 0, n)
	for r := 0; r < limit && len(regs) < n; r++ {
		if used&(1<<r) == 0 {
			regs = append(regs, VReg(r))
		}
	}
	if len(regs) < n {
		return nil, fmt.Errorf("%s: scratch pool exhausted (%d live, %d wanted)", arch, len(live), n)
	}
	return regs, nil
}

// emitNode instantiates a rule's template with the node's live bindings and
// appends the bound instructions to the sequence.
func emitNode(arch Arch, seq *Sequence, n Node, rule *Rule) error {
	live := make([]VReg, 0, len(n.Args)+1)
	for _, a := range n.Args {
		live = append(live, a.Reg)
	}
	live = append(live, n.Result)

	limit := vecRegCount(arch)
	for _, r := range live {
		if int(r) >= limit {
			return &InvalidOperandError{
				Op:     n.Op,
				Reason: fmt.Sprintf("register v%d exceeds the %s vector file (%d registers)", r, arch, limit),
			}
		}
	}

	scratchRegs, err := allocScratch(arch, rule.Scratch, live)
	if err != nil {
		return err
	}

	for _, sk := range rule.Template {
		ins := Instr{Mnemonic: sk.Mnemonic, Args: make([]string, 0, len(sk.Slots))}
		for _, s := range sk.Slots {
			arg, err := bindSlot(arch, seq, n, scratchRegs, s)
			if err != nil {
				return err
			}
			ins.Args = append(ins.Args, arg)
		}
		seq.Instrs = append(seq.Instrs, ins)
	}
	return nil
}

func bindSlot(arch Arch, seq *Sequence, n Node, scratchRegs []VReg, s Slot) (string, error) {
	switch s.Kind {
	case SlotIn:
		if s.Index >= len(n.Args) {
			return "", fmt.Errorf("skeleton references operand %d of %d-operand node", s.Index, len(n.Args))
		}
		return vregName(arch, n.Args[s.Index].Reg, s.Arr), nil
	case SlotOut:
		return vregName(arch, n.Result, s.Arr), nil
	case SlotScratch:
		if s.Index >= len(scratchRegs) {
			return "", fmt.Errorf("skeleton references scratch %d of %d allocated", s.Index, len(scratchRegs))
		}
		return vregName(arch, scratchRegs[s.Index], s.Arr), nil
	case SlotImm:
		// Hex matches objdump's AT&T rendering of immediates.
		return fmt.Sprintf("$%#x", s.Imm), nil
	case SlotConst:
		value, ok := amd64PoolConsts[s.Const]
		if !ok {
			return "", fmt.Errorf("skeleton references unknown pool constant %q", s.Const)
		}
		name := seq.Pool.Ref(s.Const, value)
		return name + "(%rip)", nil
	default:
		return "", fmt.Errorf("invalid slot kind %d", s.Kind)
	}
}
