package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDutchPhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"leading zero", "0612345678", "+31612345678"},
		{"with separators", "06-12 34 56 78", "+31612345678"},
		{"already international", "+31612345678", "+31612345678"},
		{"foreign international", "+32470123456", "+32470123456"},
		{"double zero prefix", "0031612345678", "+31612345678"},
		{"bare digits", "612345678", "+31612345678"},
		{"bare country code", "31612345678", "+31612345678"},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
		{"letters", "06-CALLME", ""},
		{"too short", "0612", ""},
		{"plus only", "+", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDutchPhone(tt.in))
		})
	}
}
