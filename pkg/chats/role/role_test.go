package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"system", System},
		{"user", User},
		{"assistant", Assistant},
		{"tool", Tool},
		{"function", Tool},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("narrator")
	require.Error(t, err)
}

func TestOf(t *testing.T) {
	assert.Equal(t, Assistant, Of("Coder", "Coder"))
	assert.Equal(t, User, Of("Product_manager", "Coder"))
	assert.Equal(t, User, Of("", ""))
}

func TestValid(t *testing.T) {
	assert.True(t, Tool.Valid())
	assert.False(t, Role("function").Valid())
	assert.False(t, Role("").Valid())
}
