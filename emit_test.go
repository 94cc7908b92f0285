package wasmfxtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstrString(t *testing.T) {
	require.Equal(t, "retq", Instr{Mnemonic: "retq"}.String())
	require.Equal(t, "movaps %xmm0, %xmm1",
		Instr{Mnemonic: "movaps", Args: []string{"%xmm0", "%xmm1"}}.String())
}

func TestConstPoolDedup(t *testing.T) {
	p := newConstPool()
	var ones [16]byte
	for i := range ones {
		ones[i] = 1
	}
	p.Ref("a", ones)
	p.Ref("b", [16]byte{})
	p.Ref("a", ones)
	require.Equal(t, []string{"a", "b"}, p.Names())
	v, ok := p.Value("a")
	require.True(t, ok)
	require.Equal(t, ones, v)
	_, ok = p.Value("missing")
	require.False(t, ok)
}

func TestAllocScratchAvoidsLiveRegisters(t *testing.T) {
	regs, err := allocScratch(ArchAMD64, 2, []VReg{0, 1, 3})
	require.NoError(t, err)
	require.Equal(t, []VReg{2, 4}, regs)

	regs, err = allocScratch(ArchARM64, 3, []VReg{0, 1, 2})
	require.NoError(t, err)
	require.Equal(t, []VReg{3, 4, 5}, regs)

	regs, err = allocScratch(ArchAMD64, 0, []VReg{0})
	require.NoError(t, err)
	require.Nil(t, regs)
}

func TestAllocScratchExhaustion(t *testing.T) {
	live := make([]VReg, amd64VecRegs)
	for i := range live {
		live[i] = VReg(i)
	}
	_, err := allocScratch(ArchAMD64, 1, live)
	require.Error(t, err)

	// The same pressure fits on AArch64's larger file.
	regs, err := allocScratch(ArchARM64, 1, live)
	require.NoError(t, err)
	require.Equal(t, []VReg{16}, regs)
}

func TestPrologueEpilogueFraming(t *testing.T) {
	seq := &Sequence{Pool: newConstPool()}
	appendPrologue(ArchAMD64, seq)
	appendEpilogue(ArchAMD64, seq)
	require.Equal(t, []string{
		"pushq %rbp",
		"movq %rsp, %rbp",
		"movq %rbp, %rsp",
		"popq %rbp",
		"retq",
	}, Listing(seq))

	seq = &Sequence{Pool: newConstPool()}
	appendPrologue(ArchARM64, seq)
	appendEpilogue(ArchARM64, seq)
	require.Equal(t, []string{
		"stp x29, x30, [sp, #-16]!",
		"mov x29, sp",
		"ldp x29, x30, [sp], #16",
		"ret",
	}, Listing(seq))
}

func TestEmitNodeBindsConstants(t *testing.T) {
	rule, err := amd64Rules.Lookup(OpRelaxedTruncF64x2UZero, Target{ArchAMD64, FeatureSSE41})
	require.NoError(t, err)

	seq := &Sequence{Pool: newConstPool()}
	n := Node{
		Op:     OpRelaxedTruncF64x2UZero,
		Args:   []Operand{{Reg: 0, Lane: LaneF64}},
		Result: 1,
	}
	require.NoError(t, emitNode(ArchAMD64, seq, n, rule))

	require.Equal(t, []string{
		"movapd %xmm0, %xmm1",
		"maxpd .LCPI_f64x2_zero(%rip), %xmm1",
		"minpd .LCPI_f64x2_umax32(%rip), %xmm1",
		"roundpd $0x3, %xmm1, %xmm1",
		"addpd .LCPI_f64x2_bias52(%rip), %xmm1",
		"shufps $0x88, .LCPI_f64x2_zero(%rip), %xmm1",
	}, Listing(seq))

	// The zero constant is referenced twice but pooled once.
	require.Equal(t, []string{constF64x2Zero, constF64x2UMax, constF64x2Bias}, seq.Pool.Names())
	bias, ok := seq.Pool.Value(constF64x2Bias)
	require.True(t, ok)
	require.Equal(t, byte(0x43), bias[7])
	require.Equal(t, byte(0x43), bias[15])
}
