package otp

import (
	"fmt"
	"slices"
	"strings"
)

// The RFC 4648 Base32 alphabet. A character's index is its 5 bit value.
const base32Alphabet string = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// NormalizeSecret uppercases the secret and strips whitespace,
// hyphens, and padding characters. Secrets are often issued in
// grouped lowercase form, e.g. "abcd-efgh" or "abcd efgh ====".
func NormalizeSecret(secret string) string {
	var clean string = strings.ToUpper(strings.Join(strings.Fields(secret), ""))

	clean = strings.ReplaceAll(clean, "-", "")
	clean = strings.ReplaceAll(clean, "=", "")

	return clean
}

// DecodeSecret normalizes a Base32 shared secret and decodes it to
// key bytes. Characters are packed most significant group first as
// 5 bit values; a trailing group that cannot fill a full byte is
// discarded. Callers must Wipe the returned bytes once the key has
// been used.
func DecodeSecret(secret string) ([]byte, error) {
	var clean string = NormalizeSecret(secret)

	if clean == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidSecret)
	}

	var invalid map[rune]bool
	var key []byte = make([]byte, 0, len(clean)*5/8)
	var buf uint
	var bits uint

	for _, r := range clean {
		var idx int = strings.IndexRune(base32Alphabet, r)

		if idx < 0 {
			if invalid == nil {
				invalid = make(map[rune]bool)
			}
			invalid[r] = true
			continue
		}

		buf = buf<<5 | uint(idx)
		bits += 5

		if bits >= 8 {
			bits -= 8
			key = append(key, byte(buf>>bits))
		}
	}

	// Report every offending character, deduplicated and sorted
	if len(invalid) > 0 {
		var runes []rune = make([]rune, 0, len(invalid))

		for r := range invalid {
			runes = append(runes, r)
		}
		slices.Sort(runes)

		Wipe(key)

		return nil, fmt.Errorf("%w: invalid base32 characters %q", ErrInvalidSecret, string(runes))
	}

	if len(key) == 0 {
		return nil, fmt.Errorf("%w: secret decodes to no bytes", ErrInvalidSecret)
	}

	return key, nil
}

// Wipe overwrites key material with zeros. The decoded secret is
// cryptographic key material and must not outlive the computation
// it keys.
func Wipe(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
