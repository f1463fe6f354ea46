package service

import (
	"net/url"
	"strings"
)

func fillOrderNumber(template, orderNumber string) string {
	return strings.NewReplacer(
		"{ORDER_NUMBER}", orderNumber,
		"{orderNumber}", orderNumber,
	).Replace(template)
}

func isHTTPURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// successURL fills the configured template, falling back to the storefront's
// own order page when the template is unset or does not yield a valid URL.
func successURL(template, orderNumber, origin string) string {
	fallback := strings.TrimRight(origin, "/") + "/order/" + url.PathEscape(orderNumber)
	if strings.TrimSpace(template) == "" {
		return fallback
	}
	resolved := fillOrderNumber(template, orderNumber)
	if !isHTTPURL(resolved) {
		return fallback
	}
	return resolved
}

func cancelURL(configured, origin string) string {
	if strings.TrimSpace(configured) == "" || !isHTTPURL(configured) {
		return origin
	}
	return configured
}
