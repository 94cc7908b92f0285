package wasmfxtime

import (
	"encoding/binary"
	"math"
)

// Pooled constants referenced by the x86-64 emulation sequences. Names are
// symbolic; the downstream encoder decides pool placement.
const (
	constI16x8Ones = ".LCPI_i16x8_ones"
	constF64x2Zero = ".LCPI_f64x2_zero"
	constF64x2UMax = ".LCPI_f64x2_umax32"
	constF64x2Bias = ".LCPI_f64x2_bias52"
)

var amd64PoolConsts = func() map[string][16]byte {
	m := map[string][16]byte{}

	// i16x8 of all ones, the pmaddwd widening multiplicand.
	var ones [16]byte
	for i := 0; i < 16; i += 2 {
		ones[i] = 1
	}
	m[constI16x8Ones] = ones

	m[constF64x2Zero] = [16]byte{}

	// f64x2 of 4294967295.0, the upper clamp for unsigned i32 lanes.
	var umax [16]byte
	u := math.Float64bits(4294967295.0)
	binary.LittleEndian.PutUint64(umax[:8], u)
	binary.LittleEndian.PutUint64(umax[8:], u)
	m[constF64x2UMax] = umax

	// f64x2 with bit pattern 0x4330000000000000 (2^52). Adding it forces the
	// truncated integer value into the low mantissa bits of each lane.
	var bias [16]byte
	binary.LittleEndian.PutUint64(bias[:8], 0x4330000000000000)
	binary.LittleEndian.PutUint64(bias[8:], 0x4330000000000000)
	m[constF64x2Bias] = bias

	return m
}()

// amd64Rules is the x86-64 lowering table. Operand order is AT&T
// (source first, destination last). The SSE4.1-class baseline is always
// present; FeatureAVX gates the VEX-encoded fast paths.
var amd64Rules = newRuleTable(ArchAMD64, []Rule{
	// i32x4.relaxed_trunc_f32x4_s: a single truncating convert. Relaxed
	// semantics make the hardware's NaN/overflow behavior acceptable as is.
	{Op: OpRelaxedTruncF32x4S, Requires: FeatureAVX, Template: []Skeleton{
		{Mnemonic: "vcvttps2dq", Slots: []Slot{in(0), out()}},
	}},
	{Op: OpRelaxedTruncF32x4S, Template: []Skeleton{
		{Mnemonic: "cvttps2dq", Slots: []Slot{in(0), out()}},
	}},

	// i32x4.relaxed_trunc_f32x4_u: x86-64 has no 128-bit unsigned truncating
	// convert, so the value is split around a 2^31 bias: lanes below the bias
	// convert directly, lanes at or above it convert after subtracting the
	// bias and the two paths are recombined. Instruction order is load-bearing
	// because intermediates are reused:
	//   dst = max(x, 0)                 clamp negative lanes
	//   s0  = float(0x7fffffff)         bias from all-ones >> 1
	//   s1  = dst - s0                  high-path input
	//   s0  = (s0 <= s1) lane mask      classifies above/below bias
	//   s1  = trunc(s1) ^ s0            high path, garbage where below bias
	//   s1  = max(s1, 0)                clamp the garbage lanes to zero
	//   dst = trunc(dst) + s1           add correction to the low path
	{Op: OpRelaxedTruncF32x4U, Scratch: 2, Template: []Skeleton{
		{Mnemonic: "movaps", Slots: []Slot{in(0), out()}},
		{Mnemonic: "xorps", Slots: []Slot{scratch(0), scratch(0)}},
		{Mnemonic: "maxps", Slots: []Slot{scratch(0), out()}},
		{Mnemonic: "pcmpeqd", Slots: []Slot{scratch(0), scratch(0)}},
		{Mnemonic: "psrld", Slots: []Slot{imm(1), scratch(0)}},
		{Mnemonic: "cvtdq2ps", Slots: []Slot{scratch(0), scratch(0)}},
		{Mnemonic: "movaps", Slots: []Slot{out(), scratch(1)}},
		{Mnemonic: "subps", Slots: []Slot{scratch(0), scratch(1)}},
		{Mnemonic: "cmpleps", Slots: []Slot{scratch(1), scratch(0)}},
		{Mnemonic: "cvttps2dq", Slots: []Slot{scratch(1), scratch(1)}},
		{Mnemonic: "pxor", Slots: []Slot{scratch(0), scratch(1)}},
		{Mnemonic: "pxor", Slots: []Slot{scratch(0), scratch(0)}},
		{Mnemonic: "pmaxsd", Slots: []Slot{scratch(0), scratch(1)}},
		{Mnemonic: "cvttps2dq", Slots: []Slot{out(), out()}},
		{Mnemonic: "paddd", Slots: []Slot{scratch(1), out()}},
	}},

	// i32x4.relaxed_trunc_f64x2_s_zero: cvttpd2dq already zeroes the high
	// half of the destination.
	{Op: OpRelaxedTruncF64x2SZero, Requires: FeatureAVX, Template: []Skeleton{
		{Mnemonic: "vcvttpd2dq", Slots: []Slot{in(0), out()}},
	}},
	{Op: OpRelaxedTruncF64x2SZero, Template: []Skeleton{
		{Mnemonic: "cvttpd2dq", Slots: []Slot{in(0), out()}},
	}},

	// i32x4.relaxed_trunc_f64x2_u_zero: clamp into [0, 2^32-1], truncate with
	// roundpd, then add 2^52 so the integer result lands in the low mantissa
	// bits of each f64 lane, and pack those 32-bit halves into the low half
	// of the destination (shufps mask 0b10_00_10_00 with a zero source).
	{Op: OpRelaxedTruncF64x2UZero, Template: []Skeleton{
		{Mnemonic: "movapd", Slots: []Slot{in(0), out()}},
		{Mnemonic: "maxpd", Slots: []Slot{cref(constF64x2Zero), out()}},
		{Mnemonic: "minpd", Slots: []Slot{cref(constF64x2UMax), out()}},
		{Mnemonic: "roundpd", Slots: []Slot{imm(3), out(), out()}},
		{Mnemonic: "addpd", Slots: []Slot{cref(constF64x2Bias), out()}},
		{Mnemonic: "shufps", Slots: []Slot{imm(0x88), cref(constF64x2Zero), out()}},
	}},

	// i16x8.relaxed_dot_i8x16_i7x16_s: pmaddubsw multiplies unsigned bytes of
	// the destination by signed bytes of the source. The 7-bit operand goes
	// in the signed slot; relaxed semantics let the full-range operand be
	// read as unsigned because -128 inputs are declared don't-care.
	{Op: OpRelaxedDotI8x16I7x16S, Requires: FeatureAVX, Template: []Skeleton{
		{Mnemonic: "vpmaddubsw", Slots: []Slot{in(1), in(0), out()}},
	}},
	{Op: OpRelaxedDotI8x16I7x16S, Template: []Skeleton{
		{Mnemonic: "movdqa", Slots: []Slot{in(0), out()}},
		{Mnemonic: "pmaddubsw", Slots: []Slot{in(1), out()}},
	}},

	// i32x4.relaxed_dot_i8x16_i7x16_add_s: the 16-bit dot above, widened to
	// 32-bit lanes by a multiply-add against a pooled vector of ones, then
	// the accumulator is added.
	{Op: OpRelaxedDotI8x16I7x16AddS, Requires: FeatureAVX, Template: []Skeleton{
		{Mnemonic: "vpmaddubsw", Slots: []Slot{in(1), in(0), out()}},
		{Mnemonic: "vpmaddwd", Slots: []Slot{cref(constI16x8Ones), out(), out()}},
		{Mnemonic: "vpaddd", Slots: []Slot{in(2), out(), out()}},
	}},
	{Op: OpRelaxedDotI8x16I7x16AddS, Template: []Skeleton{
		{Mnemonic: "movdqa", Slots: []Slot{in(0), out()}},
		{Mnemonic: "pmaddubsw", Slots: []Slot{in(1), out()}},
		{Mnemonic: "pmaddwd", Slots: []Slot{cref(constI16x8Ones), out()}},
		{Mnemonic: "paddd", Slots: []Slot{in(2), out()}},
	}},
})
