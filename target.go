package wasmfxtime

import (
	"fmt"
	"math/bits"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
)

// Arch identifies a supported target instruction set.
type Arch uint8

const (
	ArchInvalid Arch = iota
	ArchAMD64
	ArchARM64
)

func (a Arch) String() string {
	switch a {
	case ArchAMD64:
		return "x86_64"
	case ArchARM64:
		return "aarch64"
	default:
		return "invalid"
	}
}

// Feature is a bitset of ISA extensions relevant to relaxed SIMD lowering.
type Feature uint32

const (
	// FeatureSSE41 is the x86-64 SIMD baseline. The emulation sequences use
	// SSE4.1 instructions (pmaxsd, roundpd), so it cannot be disabled.
	FeatureSSE41 Feature = 1 << iota
	// FeatureAVX gates VEX-encoded three-operand forms on x86-64.
	FeatureAVX
	// FeatureNEON is the AArch64 SIMD baseline (ASIMD, ARMv8-A mandatory).
	FeatureNEON
	// FeatureI8MM gates the AArch64 mixed-sign dot product (usdot).
	FeatureI8MM
)

// Has reports whether every feature in want is present.
func (f Feature) Has(want Feature) bool { return f&want == want }

func (f Feature) count() int { return bits.OnesCount32(uint32(f)) }

func (f Feature) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for name, bit := range featureNames {
		if f.Has(bit) {
			parts = append(parts, name)
		}
	}
	// Map iteration order is random; keep output stable.
	sort.Strings(parts)
	return strings.Join(parts, "+")
}

var featureNames = map[string]Feature{
	"sse4_1": FeatureSSE41,
	"avx":    FeatureAVX,
	"neon":   FeatureNEON,
	"i8mm":   FeatureI8MM,
}

// archFeatures lists which features are meaningful per arch, and which are
// part of the unremovable baseline.
var (
	archValidFeatures = map[Arch]Feature{
		ArchAMD64: FeatureSSE41 | FeatureAVX,
		ArchARM64: FeatureNEON | FeatureI8MM,
	}
	archBaseline = map[Arch]Feature{
		ArchAMD64: FeatureSSE41,
		ArchARM64: FeatureNEON,
	}
)

// Target describes one compilation target: the instruction set plus the
// resolved extension set. It is immutable for the lifetime of a session.
type Target struct {
	Arch     Arch
	Features Feature
}

func (t Target) String() string {
	return fmt.Sprintf("%s[%s]", t.Arch, t.Features)
}

type resolveKey struct {
	triple string
	flags  string
}

var resolveCache = struct {
	sync.RWMutex
	m map[resolveKey]Target
}{m: map[resolveKey]Target{}}

// Resolve computes the Target for an LLVM-style triple and a space-separated
// set of "+feature"/"-feature" flags. It is a pure function of its inputs and
// caches results process-wide; the cached value is immutable.
//
// Bare arch names ("x86_64", "aarch64") are accepted alongside full triples
// ("x86_64-unknown-linux-gnu"), matching what golden fixtures carry.
func Resolve(triple, flags string) (Target, error) {
	key := resolveKey{triple: triple, flags: flags}
	resolveCache.RLock()
	t, ok := resolveCache.m[key]
	resolveCache.RUnlock()
	if ok {
		return t, nil
	}

	t, err := resolve(triple, flags)
	if err != nil {
		return Target{}, err
	}
	resolveCache.Lock()
	resolveCache.m[key] = t
	resolveCache.Unlock()
	return t, nil
}

func resolve(triple, flags string) (Target, error) {
	arch := triple
	if i := strings.IndexByte(triple, '-'); i >= 0 {
		arch = triple[:i]
	}
	var t Target
	switch arch {
	case "x86_64", "amd64":
		t.Arch = ArchAMD64
	case "aarch64", "arm64":
		t.Arch = ArchARM64
	default:
		return Target{}, &UnsupportedTargetError{Triple: triple, Reason: "unrecognized architecture"}
	}
	t.Features = archBaseline[t.Arch]

	for _, tok := range strings.Fields(flags) {
		if len(tok) < 2 || (tok[0] != '+' && tok[0] != '-') {
			return Target{}, &UnsupportedTargetError{Triple: triple, Reason: fmt.Sprintf("malformed feature flag %q", tok)}
		}
		bit, ok := featureNames[tok[1:]]
		if !ok || !archValidFeatures[t.Arch].Has(bit) {
			return Target{}, &UnsupportedTargetError{Triple: triple, Reason: fmt.Sprintf("unknown feature flag %q for %s", tok, t.Arch)}
		}
		if tok[0] == '+' {
			t.Features |= bit
			continue
		}
		if archBaseline[t.Arch].Has(bit) {
			return Target{}, &UnsupportedTargetError{Triple: triple, Reason: fmt.Sprintf("baseline feature %q cannot be disabled", tok[1:])}
		}
		t.Features &^= bit
	}
	return t, nil
}

// ResolveHost resolves a Target for the compiling machine, detecting gated
// features from the host CPU.
func ResolveHost() (Target, error) {
	switch runtime.GOARCH {
	case "amd64":
		flags := ""
		if cpu.X86.HasAVX {
			flags = "+avx"
		}
		return Resolve("x86_64", flags)
	case "arm64":
		flags := ""
		if cpu.ARM64.HasI8MM {
			flags = "+i8mm"
		}
		return Resolve("aarch64", flags)
	default:
		return Target{}, &UnsupportedTargetError{Triple: runtime.GOARCH, Reason: "host architecture not supported"}
	}
}
