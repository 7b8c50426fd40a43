// Copyright © 2025 The cinder authors

package runtime

import (
	"math"
)

// Value hashing for runtime objects.  Hashes feed the analyzer's structural
// expression hash and the cycle detector used during macro expansion; they
// are consistent with Equal (equal objects hash equally) but collisions are
// possible and callers must treat matches statistically.

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

func hashString(s string) uint64 {
	h := uint64(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	return h
}

// HashCombine mixes a new value into an accumulated hash.
func HashCombine(seed, v uint64) uint64 {
	// Boost-style combine; good avalanche for tree hashing.
	return seed ^ (v + 0x9e3779b97f4a7c15 + (seed << 6) + (seed >> 2))
}

// Hash returns a value hash for o.  Integral reals hash like the equivalent
// integer so that Equal-consistent hashing holds across numeric tags.
func Hash(o *Object) uint64 {
	h := uint64(o.Tag)
	switch o.Tag {
	case TagNil:
		return HashCombine(h, 0)
	case TagBool:
		if o.Bool {
			return HashCombine(h, 1)
		}
		return HashCombine(h, 0)
	case TagInt:
		return HashCombine(uint64(TagInt), uint64(o.Int))
	case TagReal:
		if o.Real == math.Trunc(o.Real) && !math.IsInf(o.Real, 0) {
			// Equal treats 2 and 2.0 as the same value.
			return HashCombine(uint64(TagInt), uint64(int64(o.Real)))
		}
		return HashCombine(h, math.Float64bits(o.Real))
	case TagString, TagSymbol, TagKeyword:
		return HashCombine(h, hashString(o.Str))
	case TagList, TagVector:
		h = HashCombine(h, uint64(len(o.Items)))
		for _, item := range o.Items {
			h = HashCombine(h, Hash(item))
		}
		return h
	case TagMap:
		// Unordered combine so that key order never affects the hash.
		var sum uint64
		for i := 0; i < len(o.Items); i += 2 {
			sum += HashCombine(Hash(o.Items[i]), Hash(o.Items[i+1]))
		}
		return HashCombine(h, sum)
	case TagSet:
		var sum uint64
		for _, item := range o.Items {
			sum += Hash(item)
		}
		return HashCombine(h, sum)
	case TagVar:
		return HashCombine(h, hashString(o.Var().QualifiedName()))
	case TagNamespace:
		return HashCombine(h, hashString(o.Namespace().Name()))
	case TagFun:
		fd := o.FunData()
		return HashCombine(h, hashString(fd.NS+"/"+fd.Name))
	case TagError:
		return HashCombine(h, hashString(o.Str))
	case TagExtension:
		return HashCombine(h, hashString(o.ext().TypeName))
	}
	return h
}
