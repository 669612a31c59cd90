package code

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{4, 6, 12} {
		c, err := New(length)
		require.NoError(t, err)
		require.Len(t, c, length)
		for _, r := range c {
			require.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q in code %q", r, c)
		}
	}
}

func TestNew_RejectsOutOfRangeLengths(t *testing.T) {
	for _, length := range []int{0, 3, 13, -1} {
		_, err := New(length)
		require.Error(t, err, "length %d", length)
	}
}

func TestNew_CodesVary(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		c, err := New(8)
		require.NoError(t, err)
		seen[c] = true
	}
	// 50 draws from 62^8 repeating would mean a broken randomness source.
	require.Greater(t, len(seen), 45)
}
