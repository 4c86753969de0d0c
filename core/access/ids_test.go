package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChannelID(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"-1001234567890", -1001234567890},
		{"1234567890", -1001234567890},
		{" 1234567890 ", -1001234567890},
		{"-987654321", -987654321},
	}
	for _, tc := range cases {
		got, err := NormalizeChannelID(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestNormalizeChannelIDRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "   ", "@mychannel", "abc", "12x4"} {
		_, err := NormalizeChannelID(in)
		assert.Error(t, err, "input %q", in)
	}
}
