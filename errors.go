package wasmfxtime

import "fmt"

// UnsupportedTargetError reports a target triple or feature flag the backend
// does not recognize. It is returned before any lowering begins.
type UnsupportedTargetError struct {
	Triple string
	Reason string
}

func (e *UnsupportedTargetError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported target %q: %s", e.Triple, e.Reason)
	}
	return fmt.Sprintf("unsupported target %q", e.Triple)
}

// InvalidOperandError reports an IR node whose operand count or lane types do
// not match the opcode's signature. Upstream type checking is supposed to make
// this unreachable, so callers must treat it as a fatal internal error rather
// than recover from it.
type InvalidOperandError struct {
	Op     Opcode
	Reason string
}

func (e *InvalidOperandError) Error() string {
	return fmt.Sprintf("invalid operands for %s: %s", e.Op, e.Reason)
}

// MissingFallbackError reports a rule table in which some opcode has a
// feature-gated rule but no unconditional fallback. Table validation at
// session start makes this unreachable afterwards; seeing it at lowering time
// indicates a rule-authoring bug.
type MissingFallbackError struct {
	Arch Arch
	Op   Opcode
}

func (e *MissingFallbackError) Error() string {
	return fmt.Sprintf("%s: no unconditional lowering rule for %s", e.Arch, e.Op)
}
