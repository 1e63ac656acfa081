// Package fingerprint computes the deterministic integer identifiers TURTLES
// uses in place of pointers or UUIDs: ProcId and TraceId. Both are Rabin-Karp
// rolling hashes over a fixed multiplier and modulus, chosen so that the same
// procedure name or call site produces the same id in every process, on every
// machine, forever. There is no state here and nothing that can fail on a
// well-formed input.
package fingerprint

import "unicode/utf8"

// Multiplier, modulus and seed of the rolling hash. p is the eighth Mersenne
// prime (2^31 - 1); a is the seventh (2^19 - 1). Both are prime, which keeps
// the hash well-distributed over the range of int32.
const (
	multiplier = 524287
	modulus    = 2147483647
	seed       = 0
)

// HashBytes folds a byte sequence into the rolling hash, treating each byte
// as its numeric value. It never fails: every []byte is already a valid
// sequence of byte values.
func HashBytes(data []byte) int64 {
	var h int64 = seed
	for _, b := range data {
		h = (h*multiplier + int64(b)) % modulus
	}
	return h
}

// HashInts folds a sequence of integers into the rolling hash. Unlike
// HashBytes, values are not required to fit in a byte; TraceId hashes
// caller/callee ids that are themselves already the output of this package.
func HashInts(xs []int64) int64 {
	var h int64 = seed
	for _, x := range xs {
		h = (h*multiplier + x) % modulus
	}
	return h
}

// HashString hashes the UTF-8 bytes of s. hash_bytes(utf8(s)) and this
// function are the same computation by construction; HashRunes is the
// separate code-point overload for callers that received s already decoded.
func HashString(s string) int64 {
	return HashBytes([]byte(s))
}

// HashRunes hashes the sequence of Unicode code points in s, one HashInts
// term per rune. For ASCII-only input this is equal to HashString(s), per
// the byte/char hash equivalence law; for non-ASCII input the two diverge,
// since a multi-byte UTF-8 encoding folds several byte terms into one rune
// term. Returns an error if s is not valid UTF-8, since there is then no
// well-defined sequence of code points to hash.
func HashRunes(s string) (int64, error) {
	if !utf8.ValidString(s) {
		return 0, errInvalidUTF8
	}
	var h int64 = seed
	for _, r := range s {
		h = (h*multiplier + int64(r)) % modulus
	}
	return h, nil
}
