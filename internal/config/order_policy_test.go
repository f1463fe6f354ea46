package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPendingExpiry(t *testing.T) {
	cases := []struct {
		minutes float64
		want    time.Duration
	}{
		{1440, 24 * time.Hour},
		{0, 24 * time.Hour},
		{-5, 24 * time.Hour},
		{math.NaN(), 24 * time.Hour},
		{math.Inf(1), 24 * time.Hour},
		{0.2, time.Minute},
		{29.6, 30 * time.Minute},
	}
	for _, tc := range cases {
		got := OrderPolicy{PendingExpiryMinutes: tc.minutes}.PendingExpiry()
		assert.Equal(t, tc.want, got, "minutes=%v", tc.minutes)
	}
}

func TestOrderPolicyHolderDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewOrderPolicyHolder(zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 24*time.Hour, policy.PendingExpiry())
	assert.True(t, policy.RequirePhone)
	assert.Equal(t, "MB", policy.OrderNumberPrefix)
	assert.Equal(t, "usd", policy.Currency)
	assert.Equal(t, DefaultReconcileTimeout, policy.ReconcileTimeout)
	assert.Equal(t, DefaultWebhookTolerance, policy.WebhookTolerance)
}

func TestOrderPolicyHolderEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PENDING_ORDER_EXPIRY_MINUTES", "90")
	t.Setenv("CHECKOUT_REQUIRE_PHONE", "false")
	t.Setenv("ORDER_NUMBER_PREFIX", " ck ")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("STRIPE_CANCEL_URL", " https://bakery.example.com/cart ")

	holder, err := NewOrderPolicyHolder(zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 90*time.Minute, policy.PendingExpiry())
	assert.False(t, policy.RequirePhone)
	assert.Equal(t, "CK", policy.OrderNumberPrefix)
	assert.Equal(t, "eur", policy.Currency)
	assert.Equal(t, "https://bakery.example.com/cart", policy.CancelURL)
}

func TestOrderPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "orders.yaml"), []byte(`
orders:
  pendingExpiryMinutes: 60
  successUrlTemplate: "https://bakery.example.com/thanks/{ORDER_NUMBER}"
  reconcileTimeout: 2s
`), 0o644))

	holder, err := NewOrderPolicyHolder(zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, time.Hour, policy.PendingExpiry())
	assert.Equal(t, "https://bakery.example.com/thanks/{ORDER_NUMBER}", policy.SuccessURLTemplate)
	assert.Equal(t, 2*time.Second, policy.ReconcileTimeout)
}

func TestOrderPolicyHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.yaml"), []byte(`
orders:
  currency: dollars
`), 0o644))

	_, err := NewOrderPolicyHolder(zap.NewNop())
	require.Error(t, err)
}

func TestStaticOrderPolicy(t *testing.T) {
	policy := DefaultOrderPolicy()
	policy.Currency = "cad"
	assert.Equal(t, "cad", StaticOrderPolicy(policy).Get().Currency)
}
