// Package rid generates and inspects type-tagged resource identifiers.
//
// An identifier has the form "<tag>..<suffix>" where tag names the
// resource class ("user", "steps", "goal") and suffix is a random
// string from a crypto-grade source. Identifiers are assigned once at
// insert and never recomputed; clients treat them as opaque beyond the
// tag prefix.
package rid

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// SuffixLength is the number of random characters after the separator.
// 36^12 possible suffixes keep birthday collisions astronomically
// unlikely at any realistic record volume.
const SuffixLength = 12

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const separator = ".."

// New returns a fresh identifier for the given type tag. It never
// coordinates with other callers or with storage; entropy exhaustion
// is the only failure mode and is treated as fatal.
func New(tag string) string {
	if tag == "" {
		panic("rid: empty type tag")
	}
	// Rejection sampling: 252 is the largest multiple of 36 below 256,
	// so bytes past it would skew the first 28 characters of the
	// alphabet and are redrawn.
	const limit = 256 - 256%len(alphabet)
	suffix := make([]byte, 0, SuffixLength)
	buf := make([]byte, SuffixLength)
	for len(suffix) < SuffixLength {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("rid: entropy source unavailable: %v", err))
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			suffix = append(suffix, alphabet[int(b)%len(alphabet)])
			if len(suffix) == SuffixLength {
				break
			}
		}
	}
	return tag + separator + string(suffix)
}

// Parse splits an identifier into tag and suffix. It returns false for
// anything that does not look like a generated identifier.
func Parse(id string) (tag, suffix string, ok bool) {
	tag, suffix, found := strings.Cut(id, separator)
	if !found || tag == "" || len(suffix) < SuffixLength {
		return "", "", false
	}
	for _, r := range suffix {
		if !strings.ContainsRune(alphabet, r) {
			return "", "", false
		}
	}
	return tag, suffix, true
}

// Is reports whether id is a well-formed identifier carrying the
// expected type tag.
func Is(id, tag string) bool {
	got, _, ok := Parse(id)
	return ok && got == tag
}
