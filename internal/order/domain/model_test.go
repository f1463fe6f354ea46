package domain_test

import (
	"testing"

	"github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusPaid, true},
		{domain.OrderStatusPending, domain.OrderStatusFailed, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusRefunded, false},
		{domain.OrderStatusPaid, domain.OrderStatusRefunded, true},
		{domain.OrderStatusPaid, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPaid, domain.OrderStatusPending, false},
		{domain.OrderStatusFailed, domain.OrderStatusCancelled, true},
		{domain.OrderStatusFailed, domain.OrderStatusPaid, false},
		{domain.OrderStatusCancelled, domain.OrderStatusRefunded, false},
		{domain.OrderStatusRefunded, domain.OrderStatusCancelled, false},
		{domain.OrderStatusRefunded, domain.OrderStatusPaid, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, ok := domain.ParseOrderStatus(" paid ")
	assert.True(t, ok)
	assert.Equal(t, domain.OrderStatusPaid, status)

	_, ok = domain.ParseOrderStatus("shipped")
	assert.False(t, ok)
}
