package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/stretchr/testify/assert"
)

func testContext(headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "http://shop.local:3000/api/checkout", nil)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c
}

func TestAdminToken(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"none", nil, ""},
		{"header", map[string]string{HeaderAdminToken: " abc "}, "abc"},
		{"bearer", map[string]string{"Authorization": "Bearer abc"}, "abc"},
		{"bearer lowercase", map[string]string{"Authorization": "bearer abc"}, "abc"},
		{"bearer without value", map[string]string{"Authorization": "Bearer"}, ""},
		{"header wins", map[string]string{HeaderAdminToken: "one", "Authorization": "Bearer two"}, "one"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, adminToken(testContext(tc.headers)))
		})
	}
}

func TestRequestOrigin(t *testing.T) {
	s := &Server{}
	assert.Equal(t, "http://shop.local:3000", s.requestOrigin(testContext(nil)))
	assert.Equal(t, "https://shop.local:3000", s.requestOrigin(testContext(map[string]string{"X-Forwarded-Proto": "https"})))

	s = &Server{cfg: config.Config{PublicBaseURL: "https://bakery.example.com"}}
	assert.Equal(t, "https://bakery.example.com", s.requestOrigin(testContext(nil)))
}
