package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "sk_live_****", MaskSecret("sk_live_abc"))
	assert.Equal(t, "sk_live_****wxyz", MaskSecret("sk_live_abcdwxyz"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a****@example.com", MaskEmail("alice@example.com"))
	assert.Equal(t, "****", MaskEmail("nope"))
}

func TestMaskMetadata(t *testing.T) {
	out := MaskMetadata(map[string]any{
		"customer_email": "bob@example.com",
		"phone":          "+15551234567",
		"amount":         int64(500),
		"nested":         map[string]any{"email": "carol@example.com"},
		"":               "dropped",
	})

	assert.Equal(t, "b****@example.com", out["customer_email"])
	assert.Equal(t, "****4567", out["phone"])
	assert.Equal(t, int64(500), out["amount"])
	assert.Equal(t, map[string]any{"email": "c****@example.com"}, out["nested"])
	assert.NotContains(t, out, "")
	assert.Nil(t, MaskMetadata(nil))
}
