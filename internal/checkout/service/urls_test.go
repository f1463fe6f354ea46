package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessURL(t *testing.T) {
	origin := "https://bakery.example.com"

	assert.Equal(t, origin+"/order/MB-1", successURL("", "MB-1", origin))
	assert.Equal(t, "https://x.test/o/MB-1", successURL("https://x.test/o/{orderNumber}", "MB-1", origin))
	assert.Equal(t, "https://x.test/o/MB-1", successURL("https://x.test/o/{ORDER_NUMBER}", "MB-1", origin))
	assert.Equal(t, origin+"/order/MB-1", successURL("/relative/{ORDER_NUMBER}", "MB-1", origin))
	assert.Equal(t, origin+"/order/MB-1", successURL("ftp://x.test/{ORDER_NUMBER}", "MB-1", origin+"/"))
}

func TestCancelURL(t *testing.T) {
	origin := "https://bakery.example.com"

	assert.Equal(t, origin, cancelURL("", origin))
	assert.Equal(t, origin, cancelURL("not a url", origin))
	assert.Equal(t, "https://x.test/cart", cancelURL("https://x.test/cart", origin))
}
