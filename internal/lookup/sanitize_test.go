package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeNumber(t *testing.T) {
	cases := []struct {
		input string
		want  string
		err   bool
	}{
		{input: "+1 (415) 858-6273", want: "14158586273"},
		{input: "14158586273", want: "14158586273"},
		{input: " 44.20.7946.0958 ", want: "442079460958"},
		{input: "", err: true},
		{input: "   ", err: true},
		{input: "12345", err: true},
		{input: "1234567890123456", err: true},
		{input: "call me maybe", err: true},
		{input: "++14158586273", err: true},
		{input: "1415858627x", err: true},
	}

	for _, tc := range cases {
		got, err := SanitizeNumber(tc.input)
		if tc.err {
			assert.ErrorIs(t, err, ErrMalformedNumber, "input %q", tc.input)
			continue
		}
		assert.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, got)
	}
}
