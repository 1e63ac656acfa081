package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHashStringVectors pins fixed vectors: hash("") = 0, hash("a") = 97,
// hash("ab") = 50_855_937, hash("ba") = 51_380_223, with the default
// multiplier/modulus/seed. Any change to those constants must keep these
// values, since downstream ProcIds are persisted and compared across
// process restarts.
func TestHashStringVectors(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"a", 97},
		{"ab", 50_855_937},
		{"ba", 51_380_223},
	}
	for _, c := range cases {
		require.Equal(t, c.want, HashString(c.in), "HashString(%q)", c.in)
	}
}

// TestHashDeterminism asserts that identical inputs produce identical
// hashes across repeated calls (standing in for "across processes and
// machines", which for a pure function is the same claim).
func TestHashDeterminism(t *testing.T) {
	for _, s := range []string{"", "a", "Foo::Bar::baz", "\x00\x01\xff"} {
		first := HashString(s)
		for i := 0; i < 5; i++ {
			require.Equal(t, first, HashString(s), "not deterministic for %q", s)
		}
	}
}

// TestHashBytesIntsEquivalence checks hash_bytes(utf8(s)) = hash_chars(s)
// for ASCII inputs.
func TestHashBytesIntsEquivalence(t *testing.T) {
	for _, s := range []string{"", "a", "ab", "ba", "Widget::process"} {
		want := HashString(s)
		got, err := HashRunes(s)
		require.NoError(t, err)
		require.Equal(t, want, got, "ASCII equivalence broken for %q", s)
	}
}

func TestHashRunesRejectsInvalidUTF8(t *testing.T) {
	_, err := HashRunes(string([]byte{0xff, 0xfe}))
	require.Error(t, err)
}

func TestHashIntsMatchesRollingFormula(t *testing.T) {
	// h <- (h*a + x) mod p, applied by hand for a short sequence.
	var h int64
	for _, x := range []int64{1, 2, 3} {
		h = (h*multiplier + x) % modulus
	}
	require.Equal(t, h, HashInts([]int64{1, 2, 3}))
}

func TestTraceIDOrderSensitive(t *testing.T) {
	a := TraceID(1, 2, 3, 4, 5)
	b := TraceID(5, 4, 3, 2, 1)
	require.NotEqual(t, a, b, "TraceID should be sensitive to argument order")
	require.Equal(t, a, TraceID(1, 2, 3, 4, 5), "TraceID not deterministic")
}
