package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"12345678-9", true},
		{"1234567-0", true},
		{"12345678-K", true},
		{"12345678-k", true},
		{" 12345678-k ", true},
		{"", false},
		{"123456789", false},
		{"123456-7", false},
		{"123456789-1", false},
		{"12345678-X", false},
		{"12345678-10", false},
		{"12.345.678-9", false},
		{"12345678 9", false},
		{"-9", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Valid(tc.in), "input %q", tc.in)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "11222333-K", Normalize(" 11222333-k\n"))
}
