package security_test

import (
	"testing"

	"github.com/anova4all/gateway/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecretKey(t *testing.T) {
	t.Run("generates a valid key", func(t *testing.T) {
		key, err := security.GenerateSecretKey()
		require.NoError(t, err)
		assert.Len(t, key, 10)
		assert.True(t, security.ValidSecretKey(key))
	})

	t.Run("generates distinct keys", func(t *testing.T) {
		a, err := security.GenerateSecretKey()
		require.NoError(t, err)
		b, err := security.GenerateSecretKey()
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestValidSecretKey(t *testing.T) {
	cases := []struct {
		name string
		key  string
		want bool
	}{
		{"valid lowercase alphanumeric", "a1b2c3d4e5", true},
		{"too short", "abc123", false},
		{"too long", "a1b2c3d4e5f6", false},
		{"uppercase rejected", "A1B2C3D4E5", false},
		{"symbol rejected", "a1b2c3d4e!", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, security.ValidSecretKey(tc.key))
		})
	}
}

func TestConstantTimeEquals(t *testing.T) {
	t.Run("equal secrets match", func(t *testing.T) {
		assert.True(t, security.ConstantTimeEquals("a1b2c3d4e5", "a1b2c3d4e5"))
	})

	t.Run("different secrets do not match", func(t *testing.T) {
		assert.False(t, security.ConstantTimeEquals("a1b2c3d4e5", "z9y8x7w6v5"))
	})

	t.Run("different lengths do not match", func(t *testing.T) {
		assert.False(t, security.ConstantTimeEquals("short", "a1b2c3d4e5"))
	})
}
