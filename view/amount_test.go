package view

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	for _, tc := range []struct {
		in       string
		decimals uint8
		out      string
	}{
		{"1000000000", 9, "1"},
		{"1500000000", 9, "1.5"},
		{"5", 9, "0.000000005"},
		{"0", 9, "0"},
		{"123", 0, "123"},
		{"123456789012345678901234567890", 18, "123456789012.34567890123456789"},
		{"not a number", 9, "not a number"},
	} {
		require.Equal(t, tc.out, FormatAmount(tc.in, tc.decimals), "FormatAmount(%q, %d)", tc.in, tc.decimals)
	}
}
