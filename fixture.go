package wasmfxtime

import (
	"fmt"
	"strconv"
	"strings"
)

// FixtureFunc is one function body in a golden fixture plus its expected
// disassembly block.
type FixtureFunc struct {
	Name     string
	Params   []LaneType
	Result   LaneType
	Nodes    []Node
	Expected []string
}

// Fixture is a parsed golden-fixture file: target directives, function
// bodies, and expected listings.
type Fixture struct {
	Target string
	Flags  string
	Funcs  []*FixtureFunc
}

var laneShapes = map[string]LaneType{
	"i8x16": LaneI8,
	"i16x8": LaneI16,
	"i32x4": LaneI32,
	"f32x4": LaneF32,
	"f64x2": LaneF64,
}

// ParseFixture parses the golden-fixture text format.
//
//	;;! target = "x86_64"
//	;;! flags = "+avx"
//
//	function %trunc(f32x4) -> i32x4 {
//	  v1 = i32x4.relaxed_trunc_f32x4_s v0
//	}
//
//	;; function %trunc:
//	;;   pushq %rbp
//	;;   ...
//
// Parameters bind v0..v(n-1) in declaration order. Each statement defines
// its left-hand register with the opcode's result lane type.
func ParseFixture(src string) (*Fixture, error) {
	fx := &Fixture{}
	var cur *FixtureFunc
	var expect *FixtureFunc
	lanes := map[VReg]LaneType{}

	lines := strings.Split(src, "\n")
	for ln, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := ln + 1

		switch {
		case line == "":
			expect = nil

		case strings.HasPrefix(line, ";;!"):
			key, val, err := parseDirective(strings.TrimSpace(line[3:]))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			switch key {
			case "target":
				fx.Target = val
			case "flags":
				fx.Flags = val
			default:
				return nil, fmt.Errorf("line %d: unknown directive %q", lineNo, key)
			}

		case strings.HasPrefix(line, ";; function %"):
			name := strings.TrimSuffix(strings.TrimPrefix(line, ";; function %"), ":")
			expect = fx.funcByName(name)
			if expect == nil {
				return nil, fmt.Errorf("line %d: expected block for undefined function %q", lineNo, name)
			}

		case strings.HasPrefix(line, ";;"):
			if expect != nil {
				expect.Expected = append(expect.Expected, strings.TrimSpace(line[2:]))
			}

		case strings.HasPrefix(line, "function %"):
			if cur != nil {
				return nil, fmt.Errorf("line %d: nested function", lineNo)
			}
			fn, params, err := parseFuncHeader(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur = fn
			lanes = map[VReg]LaneType{}
			for i, lt := range params {
				lanes[VReg(i)] = lt
			}

		case line == "}":
			if cur == nil {
				return nil, fmt.Errorf("line %d: unmatched %q", lineNo, "}")
			}
			fx.Funcs = append(fx.Funcs, cur)
			cur = nil

		default:
			if cur == nil {
				return nil, fmt.Errorf("line %d: statement outside function: %q", lineNo, line)
			}
			n, err := parseStmt(line, lanes)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur.Nodes = append(cur.Nodes, n)
		}
	}
	if cur != nil {
		return nil, fmt.Errorf("unterminated function %q", cur.Name)
	}
	if fx.Target == "" {
		return nil, fmt.Errorf("fixture has no target directive")
	}
	return fx, nil
}

func (fx *Fixture) funcByName(name string) *FixtureFunc {
	for _, fn := range fx.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func parseDirective(s string) (key, val string, err error) {
	key, rest, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", fmt.Errorf("malformed directive %q", s)
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(rest)
	unq, err := strconv.Unquote(val)
	if err != nil {
		return "", "", fmt.Errorf("directive %s: value %s is not a quoted string", key, val)
	}
	return key, unq, nil
}

// parseFuncHeader parses `function %name(shape, ...) -> shape {`.
func parseFuncHeader(line string) (*FixtureFunc, []LaneType, error) {
	body := strings.TrimPrefix(line, "function %")
	name, rest, ok := strings.Cut(body, "(")
	if !ok {
		return nil, nil, fmt.Errorf("malformed function header %q", line)
	}
	paramList, rest, ok := strings.Cut(rest, ")")
	if !ok {
		return nil, nil, fmt.Errorf("malformed function header %q", line)
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(rest, "->")), "{")
	resName := strings.TrimSpace(rest)

	fn := &FixtureFunc{Name: strings.TrimSpace(name)}
	var params []LaneType
	for _, p := range strings.Split(paramList, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lt, ok := laneShapes[p]
		if !ok {
			return nil, nil, fmt.Errorf("unknown vector shape %q", p)
		}
		params = append(params, lt)
	}
	fn.Params = params
	if resName != "" {
		lt, ok := laneShapes[resName]
		if !ok {
			return nil, nil, fmt.Errorf("unknown result shape %q", resName)
		}
		fn.Result = lt
	}
	return fn, params, nil
}

// parseStmt parses `vN = <opcode> vA[, vB[, vC]]`.
func parseStmt(line string, lanes map[VReg]LaneType) (Node, error) {
	lhs, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return Node{}, fmt.Errorf("malformed statement %q", line)
	}
	dst, err := parseVReg(strings.TrimSpace(lhs))
	if err != nil {
		return Node{}, err
	}
	fields := strings.Fields(strings.ReplaceAll(rhs, ",", " "))
	if len(fields) == 0 {
		return Node{}, fmt.Errorf("statement %q has no opcode", line)
	}
	op, ok := OpcodeByName(fields[0])
	if !ok {
		return Node{}, fmt.Errorf("unknown opcode %q", fields[0])
	}
	n := Node{Op: op, Result: dst}
	for _, f := range fields[1:] {
		r, err := parseVReg(f)
		if err != nil {
			return Node{}, err
		}
		lt, ok := lanes[r]
		if !ok {
			return Node{}, fmt.Errorf("statement %q uses undefined register v%d", line, r)
		}
		n.Args = append(n.Args, Operand{Reg: r, Lane: lt})
	}
	desc, err := Classify(n)
	if err != nil {
		return Node{}, err
	}
	lanes[dst] = desc.Result
	return n, nil
}

func parseVReg(s string) (VReg, error) {
	if !strings.HasPrefix(s, "v") {
		return 0, fmt.Errorf("malformed register %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("malformed register %q", s)
	}
	return VReg(v), nil
}

// Listing renders a sequence's instructions one per line.
func Listing(seq *Sequence) []string {
	out := make([]string, len(seq.Instrs))
	for i, ins := range seq.Instrs {
		out[i] = ins.String()
	}
	return out
}

// CheckFixture lowers every function in the fixture and compares the result
// against the expected blocks. Expected blocks may carry trailing lines past
// the function's return; a linear disassembler reads those out of the
// constant pool, so comparison stops at the emitted sequence's end.
func CheckFixture(fx *Fixture, opt Options) error {
	target, err := Resolve(fx.Target, fx.Flags)
	if err != nil {
		return err
	}
	sess, err := NewSession(target, opt)
	if err != nil {
		return err
	}
	for _, fn := range fx.Funcs {
		seq, err := sess.LowerFunc(&Func{Name: fn.Name, Nodes: fn.Nodes})
		if err != nil {
			return err
		}
		got := Listing(seq)
		if len(fn.Expected) < len(got) {
			return fmt.Errorf("%s: produced %d instructions, expected block has %d", fn.Name, len(got), len(fn.Expected))
		}
		for i, want := range fn.Expected[:len(got)] {
			if got[i] != want {
				return fmt.Errorf("%s: instruction %d: got %q, want %q", fn.Name, i, got[i], want)
			}
		}
	}
	return nil
}
