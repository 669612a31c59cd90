package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreservesOrder(t *testing.T) {
	d, err := Parse("1,2,3,5,8")
	require.NoError(t, err)
	assert.Equal(t, Deck{1, 2, 3, 5, 8}, d)

	d, err = Parse("1w, 30m, 1d")
	require.NoError(t, err)
	assert.Equal(t, Deck{2400, 30, 480}, d)
}

func TestParse_Units(t *testing.T) {
	cases := []struct {
		token string
		want  Value
	}{
		{"45", 45},
		{"45m", 45},
		{"2h", 120},
		{"0.5h", 30},
		{"1d", 480},
		{"1w", 2400},
		{"1h 30m", 90},
		{"1d 4h", 960},
	}
	for _, tc := range cases {
		got, err := ParseValue(tc.token)
		require.NoError(t, err, tc.token)
		assert.Equal(t, tc.want, got, tc.token)
	}
}

func TestParse_RejectsBadSpecs(t *testing.T) {
	cases := []struct {
		name string
		spec string
	}{
		{"empty", ""},
		{"only separators", " , ,, "},
		{"garbage token", "1,2,banana"},
		{"zero", "0,1,2"},
		{"negative", "-1h"},
		{"fractional minute", "0.5m"},
		{"duplicate literal", "3,5,3"},
		{"duplicate after normalization", "90m, 1h 30m"},
		{"duplicate across units", "60m, 1h"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.spec)
			require.ErrorIs(t, err, ErrInvalidDeck)
		})
	}
}

func TestParse_DuplicateErrorNamesToken(t *testing.T) {
	_, err := Parse("1h, 60m")
	require.ErrorIs(t, err, ErrInvalidDeck)
	assert.Contains(t, err.Error(), `"60m"`)
}

func TestValue_String(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{30, "30m"},
		{60, "1h"},
		{90, "1h 30m"},
		{480, "1d"},
		{2400, "1w"},
		{2400 + 480 + 90, "1w 1d 1h 30m"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.v.String())
	}
}

func TestValue_TextRoundTrip(t *testing.T) {
	for _, v := range []Value{1, 30, 90, 480, 2895} {
		b, err := v.MarshalText()
		require.NoError(t, err)
		var back Value
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, v, back)
	}
}

func TestDeck_Contains(t *testing.T) {
	d, err := Parse("1,2,3")
	require.NoError(t, err)
	assert.True(t, d.Contains(2))
	assert.False(t, d.Contains(4))
}
