package core

import (
	"strings"
	"unicode"
)

// MerchantKey derives the bucketing key for a transaction label by stripping
// the trailing run of digits (invoice or sequence numbers). "NETFLIX123"
// and "NETFLIX124" both map to "NETFLIX". A fully numeric label maps to the
// empty key; callers must tolerate that low-information bucket.
func MerchantKey(rawName string) string {
	return strings.TrimRightFunc(rawName, unicode.IsDigit)
}
