// Package ordernumber builds human-facing order numbers of the form
// PREFIX-TIMESTAMP36-RANDOM4, for example MB-M5X2K9QA-7F3Z.
package ordernumber

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	suffixLength = 4
	alphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Generator returns a new order number for the given prefix and time.
// Collisions are not checked; the millisecond timestamp plus four random
// base36 characters makes them negligible at storefront volume. Swap the
// generator to add a checked variant.
type Generator func(prefix string, now time.Time) string

// New is the default Generator.
func New(prefix string, now time.Time) string {
	return Build(prefix, now, rand.IntN)
}

// Build is New with an injectable random source.
func Build(prefix string, now time.Time, intn func(int) int) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	var suffix strings.Builder
	suffix.Grow(suffixLength)
	for i := 0; i < suffixLength; i++ {
		suffix.WriteByte(alphabet[intn(len(alphabet))])
	}

	if prefix == "" {
		return stamp + "-" + suffix.String()
	}
	return prefix + "-" + stamp + "-" + suffix.String()
}
