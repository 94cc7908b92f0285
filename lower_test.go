package wasmfxtime

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T, triple, flags string) *Session {
	t.Helper()
	target, err := Resolve(triple, flags)
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.DebugLevel)
	sess, err := NewSession(target, Options{Logger: log})
	require.NoError(t, err)
	return sess
}

func TestLowerSignedTruncAMD64(t *testing.T) {
	sess := testSession(t, "x86_64-unknown-linux-gnu", "+avx")
	seq, err := sess.LowerFunc(&Func{
		Name: "trunc_s",
		Nodes: []Node{{
			Op:     OpRelaxedTruncF32x4S,
			Args:   []Operand{{Reg: 0, Lane: LaneF32}},
			Result: 1,
		}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"pushq %rbp",
		"movq %rsp, %rbp",
		"vcvttps2dq %xmm0, %xmm1",
		"movq %rbp, %rsp",
		"popq %rbp",
		"retq",
	}, Listing(seq))
	require.Empty(t, seq.Pool.Names())
}

// The unsigned f32x4 trunc has no single-instruction form on x86-64, so the
// bias/compare/combine emulation is emitted even with AVX enabled.
func TestLowerUnsignedTruncAMD64(t *testing.T) {
	sess := testSession(t, "x86_64-unknown-linux-gnu", "+avx")
	seq, err := sess.LowerFunc(&Func{
		Name: "trunc_u",
		Nodes: []Node{{
			Op:     OpRelaxedTruncF32x4U,
			Args:   []Operand{{Reg: 0, Lane: LaneF32}},
			Result: 1,
		}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"pushq %rbp",
		"movq %rsp, %rbp",
		"movaps %xmm0, %xmm1",
		"xorps %xmm2, %xmm2",
		"maxps %xmm2, %xmm1",
		"pcmpeqd %xmm2, %xmm2",
		"psrld $0x1, %xmm2",
		"cvtdq2ps %xmm2, %xmm2",
		"movaps %xmm1, %xmm3",
		"subps %xmm2, %xmm3",
		"cmpleps %xmm3, %xmm2",
		"cvttps2dq %xmm3, %xmm3",
		"pxor %xmm2, %xmm3",
		"pxor %xmm2, %xmm2",
		"pmaxsd %xmm2, %xmm3",
		"cvttps2dq %xmm1, %xmm1",
		"paddd %xmm3, %xmm1",
		"movq %rbp, %rsp",
		"popq %rbp",
		"retq",
	}, Listing(seq))
}

func TestLowerDotAddARM64(t *testing.T) {
	sess := testSession(t, "aarch64-unknown-linux-gnu", "")
	seq, err := sess.LowerFunc(&Func{
		Name: "dot_add",
		Nodes: []Node{{
			Op:     OpRelaxedDotI8x16I7x16AddS,
			Args:   []Operand{{0, LaneI8}, {1, LaneI8}, {2, LaneI32}},
			Result: 3,
		}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"stp x29, x30, [sp, #-16]!",
		"mov x29, sp",
		"smull v4.8h, v0.8b, v1.8b",
		"smull2 v5.8h, v0.16b, v1.16b",
		"addp v4.8h, v4.8h, v5.8h",
		"saddlp v4.4s, v4.8h",
		"add v3.4s, v4.4s, v2.4s",
		"ldp x29, x30, [sp], #16",
		"ret",
	}, Listing(seq))
}

func TestLowerDotAddARM64I8MM(t *testing.T) {
	sess := testSession(t, "aarch64", "+i8mm")
	seq, err := sess.LowerFunc(&Func{
		Name: "dot_add",
		Nodes: []Node{{
			Op:     OpRelaxedDotI8x16I7x16AddS,
			Args:   []Operand{{0, LaneI8}, {1, LaneI8}, {2, LaneI32}},
			Result: 3,
		}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"stp x29, x30, [sp, #-16]!",
		"mov x29, sp",
		"mov v3.16b, v2.16b",
		"usdot v3.4s, v1.16b, v0.16b",
		"ldp x29, x30, [sp], #16",
		"ret",
	}, Listing(seq))
}

// The same opcode lowered in different functions produces identical
// templates; only the register numbers follow each function's bindings.
func TestLowerTemplateStableAcrossFunctions(t *testing.T) {
	sess := testSession(t, "aarch64", "")
	node := func(a, b, acc, dst VReg) Node {
		return Node{
			Op:     OpRelaxedDotI8x16I7x16AddS,
			Args:   []Operand{{a, LaneI8}, {b, LaneI8}, {acc, LaneI32}},
			Result: dst,
		}
	}
	seqA, err := sess.LowerFunc(&Func{Name: "a", Nodes: []Node{node(0, 1, 2, 3)}})
	require.NoError(t, err)
	seqB, err := sess.LowerFunc(&Func{Name: "b", Nodes: []Node{node(7, 8, 9, 10)}})
	require.NoError(t, err)

	require.Equal(t, len(seqA.Instrs), len(seqB.Instrs))
	for i := range seqA.Instrs {
		require.Equal(t, seqA.Instrs[i].Mnemonic, seqB.Instrs[i].Mnemonic)
	}
	require.NotEqual(t, Listing(seqA), Listing(seqB))
}

func TestLowerMultiNodeFunc(t *testing.T) {
	sess := testSession(t, "x86_64", "")
	seq, err := sess.LowerFunc(&Func{
		Name: "pair",
		Nodes: []Node{
			{Op: OpRelaxedDotI8x16I7x16S, Args: []Operand{{0, LaneI8}, {1, LaneI8}}, Result: 2},
			{Op: OpRelaxedTruncF64x2SZero, Args: []Operand{{3, LaneF64}}, Result: 4},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"pushq %rbp",
		"movq %rsp, %rbp",
		"movdqa %xmm0, %xmm2",
		"pmaddubsw %xmm1, %xmm2",
		"cvttpd2dq %xmm3, %xmm4",
		"movq %rbp, %rsp",
		"popq %rbp",
		"retq",
	}, Listing(seq))
}

// Several templates write the result register before all operands are read,
// so a result that aliases an operand would silently compute with the wrong
// value (a dot of a with itself, or an accumulator clobbering an input).
// Such nodes are rejected up front.
func TestLowerRejectsAliasedResult(t *testing.T) {
	var ioe *InvalidOperandError

	sess := testSession(t, "x86_64", "")
	_, err := sess.LowerFunc(&Func{
		Name: "alias_dot",
		Nodes: []Node{{
			Op:     OpRelaxedDotI8x16I7x16S,
			Args:   []Operand{{0, LaneI8}, {1, LaneI8}},
			Result: 1,
		}},
	})
	require.ErrorAs(t, err, &ioe)

	sess = testSession(t, "aarch64", "+i8mm")
	_, err = sess.LowerFunc(&Func{
		Name: "alias_dot_add",
		Nodes: []Node{{
			Op:     OpRelaxedDotI8x16I7x16AddS,
			Args:   []Operand{{0, LaneI8}, {1, LaneI8}, {2, LaneI32}},
			Result: 1,
		}},
	})
	require.ErrorAs(t, err, &ioe)
}

func TestLowerRejectsOutOfRangeRegister(t *testing.T) {
	var ioe *InvalidOperandError

	sess := testSession(t, "x86_64", "")
	_, err := sess.LowerFunc(&Func{
		Name: "oob",
		Nodes: []Node{{
			Op:     OpRelaxedTruncF32x4S,
			Args:   []Operand{{Reg: 0, Lane: LaneF32}},
			Result: 200,
		}},
	})
	require.ErrorAs(t, err, &ioe)

	// v16 exists on AArch64 but not on x86-64.
	_, err = sess.LowerFunc(&Func{
		Name: "xmm16",
		Nodes: []Node{{
			Op:     OpRelaxedTruncF32x4S,
			Args:   []Operand{{Reg: 16, Lane: LaneF32}},
			Result: 1,
		}},
	})
	require.ErrorAs(t, err, &ioe)

	arm := testSession(t, "aarch64", "")
	seq, err := arm.LowerFunc(&Func{
		Name: "v31",
		Nodes: []Node{{
			Op:     OpRelaxedTruncF32x4S,
			Args:   []Operand{{Reg: 31, Lane: LaneF32}},
			Result: 0,
		}},
	})
	require.NoError(t, err)
	require.Contains(t, Listing(seq), "fcvtzs v0.4s, v31.4s")
}

func TestLowerFuncRejectsBadNode(t *testing.T) {
	sess := testSession(t, "x86_64", "")
	_, err := sess.LowerFunc(&Func{
		Name:  "bad",
		Nodes: []Node{{Op: OpRelaxedDotI8x16I7x16S, Args: []Operand{{0, LaneF32}, {1, LaneI8}}, Result: 2}},
	})
	var ioe *InvalidOperandError
	require.ErrorAs(t, err, &ioe)
}

func TestLowerModuleOrderAndParallelism(t *testing.T) {
	sess := testSession(t, "aarch64", "")

	const n = 64
	fns := make([]*Func, n)
	for i := range fns {
		fns[i] = &Func{
			Name: string(rune('a' + i%26)),
			Nodes: []Node{{
				Op:     OpRelaxedTruncF32x4S,
				Args:   []Operand{{Reg: VReg(i % 8), Lane: LaneF32}},
				Result: VReg(i%8 + 8),
			}},
		}
	}
	seqs, err := sess.LowerModule(fns)
	require.NoError(t, err)
	require.Len(t, seqs, n)
	for i, seq := range seqs {
		want, err := sess.LowerFunc(fns[i])
		require.NoError(t, err)
		require.Equal(t, Listing(want), Listing(seq))
	}
}

func TestLowerModuleReportsError(t *testing.T) {
	sess := testSession(t, "x86_64", "")
	fns := []*Func{
		{Name: "ok", Nodes: []Node{{Op: OpRelaxedTruncF32x4S, Args: []Operand{{0, LaneF32}}, Result: 1}}},
		{Name: "bad", Nodes: []Node{{Op: OpRelaxedTruncF32x4S, Args: nil, Result: 1}}},
	}
	_, err := sess.LowerModule(fns)
	require.Error(t, err)
	require.ErrorContains(t, err, "bad")
}

func TestNewSessionNilLogger(t *testing.T) {
	target, err := Resolve("x86_64", "")
	require.NoError(t, err)
	sess, err := NewSession(target, Options{})
	require.NoError(t, err)
	require.Equal(t, target, sess.Target())
}
