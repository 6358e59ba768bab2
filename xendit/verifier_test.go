package xendit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifier_NoTokenConfigured(t *testing.T) {
	v := NewVerifier("")

	// verification is bypassed entirely when no token is configured
	assert.True(t, v.Verify(""))
	assert.True(t, v.Verify("anything"))
	assert.False(t, v.Enabled())
}

func TestVerifier_TokenConfigured(t *testing.T) {
	v := NewVerifier("xyz")

	tests := []struct {
		name      string
		presented string
		valid     bool
	}{
		{"exact match", "xyz", true},
		{"mismatch", "abc", false},
		{"absent token", "", false},
		{"case sensitive", "XYZ", false},
		{"prefix is not enough", "xy", false},
		{"suffix junk rejected", "xyz ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, v.Verify(tt.presented))
		})
	}

	assert.True(t, v.Enabled())
}
