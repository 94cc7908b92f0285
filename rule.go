package wasmfxtime

import "fmt"

// SlotKind says how one operand position of an instruction skeleton is
// filled at emission time.
type SlotKind uint8

const (
	// SlotIn binds the n-th operand register of the node.
	SlotIn SlotKind = iota
	// SlotOut binds the node's result register.
	SlotOut
	// SlotScratch binds the n-th scratch register allocated for the rule.
	SlotScratch
	// SlotImm is a literal immediate.
	SlotImm
	// SlotConst is a symbolic reference to a pooled 16-byte constant.
	SlotConst
)

// Slot is one operand position in an instruction skeleton. Arr carries the
// AArch64 vector arrangement suffix ("4s", "8b", ...); it is empty for
// x86-64 slots and for non-vector operands.
type Slot struct {
	Kind  SlotKind
	Index int
	Imm   int64
	Const string
	Arr   string
}

func in(i int) Slot               { return Slot{Kind: SlotIn, Index: i} }
func inArr(i int, arr string) Slot { return Slot{Kind: SlotIn, Index: i, Arr: arr} }
func out() Slot                   { return Slot{Kind: SlotOut} }
func outArr(arr string) Slot      { return Slot{Kind: SlotOut, Arr: arr} }
func scratch(i int) Slot          { return Slot{Kind: SlotScratch, Index: i} }
func scratchArr(i int, arr string) Slot { return Slot{Kind: SlotScratch, Index: i, Arr: arr} }
func imm(v int64) Slot            { return Slot{Kind: SlotImm, Imm: v} }
func cref(name string) Slot       { return Slot{Kind: SlotConst, Const: name} }

// Skeleton is one templated instruction: a mnemonic plus ordered operand
// slots, bound to concrete registers and pool references at emission time.
type Skeleton struct {
	Mnemonic string
	Slots    []Slot
}

// Rule maps one opcode to a concrete instruction template for a target.
// Requires == 0 marks the unconditional fallback; a non-zero Requires marks
// the feature-gated fast path.
type Rule struct {
	Op       Opcode
	Requires Feature
	Scratch  int
	Template []Skeleton
}

// RuleTable holds the lowering rules for one architecture. Tables are built
// and validated once at session start and are read-only afterwards, so they
// are safe to share across concurrent per-function lowering tasks.
type RuleTable struct {
	arch  Arch
	rules [numOpcodes][]Rule
}

func newRuleTable(arch Arch, rules []Rule) *RuleTable {
	t := &RuleTable{arch: arch}
	for _, r := range rules {
		t.rules[r.Op] = append(t.rules[r.Op], r)
	}
	return t
}

// Validate proves totality: every opcode must carry exactly one unconditional
// fallback rule and at most one feature-gated rule. A gated rule without a
// fallback is a table-authoring bug surfaced as MissingFallbackError.
func (t *RuleTable) Validate() error {
	for op := Opcode(0); op < numOpcodes; op++ {
		var gated, fallback int
		for _, r := range t.rules[op] {
			if r.Requires == 0 {
				fallback++
			} else {
				gated++
			}
		}
		if fallback == 0 {
			return &MissingFallbackError{Arch: t.arch, Op: op}
		}
		if fallback > 1 || gated > 1 {
			return fmt.Errorf("%s: ambiguous rules for %s: %d gated, %d fallback", t.arch, op, gated, fallback)
		}
	}
	return nil
}

// Lookup selects the rule for an opcode on a target: the most specific rule
// whose required features are all present, preferring the shorter template
// among equally specific candidates. With one gated rule and one fallback per
// opcode, ties cannot occur.
func (t *RuleTable) Lookup(op Opcode, target Target) (*Rule, error) {
	if op >= numOpcodes {
		return nil, &InvalidOperandError{Op: op, Reason: "unknown opcode"}
	}
	var best *Rule
	for i := range t.rules[op] {
		r := &t.rules[op][i]
		if !target.Features.Has(r.Requires) {
			continue
		}
		if best == nil || betterRule(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil, &MissingFallbackError{Arch: t.arch, Op: op}
	}
	return best, nil
}

func betterRule(a, b *Rule) bool {
	if a.Requires.count() != b.Requires.count() {
		return a.Requires.count() > b.Requires.count()
	}
	return len(a.Template) < len(b.Template)
}

// ruleTableFor returns the (shared, immutable) table for an arch.
func ruleTableFor(arch Arch) (*RuleTable, error) {
	switch arch {
	case ArchAMD64:
		return amd64Rules, nil
	case ArchARM64:
		return arm64Rules, nil
	default:
		return nil, &UnsupportedTargetError{Triple: arch.String(), Reason: "no rule table"}
	}
}
