package wasmfxtime

// arm64Rules is the AArch64 lowering table. Operand order is destination
// first; slots carry the vector arrangement suffix. NEON is the baseline;
// FeatureI8MM gates the mixed-sign dot product.
var arm64Rules = newRuleTable(ArchARM64, []Rule{
	// Unlike x86-64, the base ISA has truncating converts in both
	// signednesses, so the f32x4 truncs are single instructions.
	{Op: OpRelaxedTruncF32x4S, Template: []Skeleton{
		{Mnemonic: "fcvtzs", Slots: []Slot{outArr("4s"), inArr(0, "4s")}},
	}},
	{Op: OpRelaxedTruncF32x4U, Template: []Skeleton{
		{Mnemonic: "fcvtzu", Slots: []Slot{outArr("4s"), inArr(0, "4s")}},
	}},

	// The f64x2 truncs convert to doubled-width integer lanes, then a
	// saturating narrow folds them into the low half and zeroes the rest.
	{Op: OpRelaxedTruncF64x2SZero, Template: []Skeleton{
		{Mnemonic: "fcvtzs", Slots: []Slot{outArr("2d"), inArr(0, "2d")}},
		{Mnemonic: "sqxtn", Slots: []Slot{outArr("2s"), outArr("2d")}},
	}},
	{Op: OpRelaxedTruncF64x2UZero, Template: []Skeleton{
		{Mnemonic: "fcvtzu", Slots: []Slot{outArr("2d"), inArr(0, "2d")}},
		{Mnemonic: "uqxtn", Slots: []Slot{outArr("2s"), outArr("2d")}},
	}},

	// i16x8.relaxed_dot_i8x16_i7x16_s: widening multiply of the low and high
	// byte halves, then a pairwise add folds the 32 partial products back to
	// eight 16-bit lanes. addp reads the concatenation of its sources, so the
	// low-half products must be the first source.
	{Op: OpRelaxedDotI8x16I7x16S, Scratch: 1, Template: []Skeleton{
		{Mnemonic: "smull", Slots: []Slot{scratchArr(0, "8h"), inArr(0, "8b"), inArr(1, "8b")}},
		{Mnemonic: "smull2", Slots: []Slot{outArr("8h"), inArr(0, "16b"), inArr(1, "16b")}},
		{Mnemonic: "addp", Slots: []Slot{outArr("8h"), scratchArr(0, "8h"), outArr("8h")}},
	}},

	// i32x4.relaxed_dot_i8x16_i7x16_add_s, gated fast path: usdot multiplies
	// unsigned bytes of its first source by signed bytes of the second and
	// accumulates into 32-bit lanes, so the destination is preloaded with the
	// accumulator and the 7-bit operand takes the unsigned slot.
	{Op: OpRelaxedDotI8x16I7x16AddS, Requires: FeatureI8MM, Template: []Skeleton{
		{Mnemonic: "mov", Slots: []Slot{outArr("16b"), inArr(2, "16b")}},
		{Mnemonic: "usdot", Slots: []Slot{outArr("4s"), inArr(1, "16b"), inArr(0, "16b")}},
	}},
	// Fallback: the 16-bit dot sequence, then a signed widening pairwise add
	// to reach 32-bit lanes, then the accumulator add.
	{Op: OpRelaxedDotI8x16I7x16AddS, Scratch: 2, Template: []Skeleton{
		{Mnemonic: "smull", Slots: []Slot{scratchArr(0, "8h"), inArr(0, "8b"), inArr(1, "8b")}},
		{Mnemonic: "smull2", Slots: []Slot{scratchArr(1, "8h"), inArr(0, "16b"), inArr(1, "16b")}},
		{Mnemonic: "addp", Slots: []Slot{scratchArr(0, "8h"), scratchArr(0, "8h"), scratchArr(1, "8h")}},
		{Mnemonic: "saddlp", Slots: []Slot{scratchArr(0, "4s"), scratchArr(0, "8h")}},
		{Mnemonic: "add", Slots: []Slot{outArr("4s"), scratchArr(0, "4s"), inArr(2, "4s")}},
	}},
})
