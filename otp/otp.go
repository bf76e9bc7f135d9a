// Package otp generates RFC 6238 time-based and RFC 4226
// counter-based One-Time Passwords from Base32 shared secrets.
package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
)

// Algorithm selects the hash function used to key the HMAC.
type Algorithm string

const (
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA512 Algorithm = "SHA512"
)

// Errors reported for invalid input. All validation failures wrap one
// of these; use errors.Is to classify.
var (
	// ErrInvalidSecret indicates the secret is empty after
	// normalization or contains characters outside the Base32 alphabet.
	ErrInvalidSecret = errors.New("otp: invalid secret")
	// ErrInvalidParameter indicates a period, digit count, algorithm,
	// or timestamp outside the supported range.
	ErrInvalidParameter = errors.New("otp: invalid parameter")
)

const (
	DefaultPeriod    int64     = 30
	DefaultDigits    int       = 6
	DefaultAlgorithm Algorithm = SHA1
)

const (
	minPeriod int64 = 30
	maxPeriod int64 = 120
	minDigits int   = 5
	maxDigits int   = 9
)

// Options configures code generation. Generation validates all three
// fields strictly, so a zero value is rejected; use WithDefaults to
// fill unset fields first.
type Options struct {
	Period    int64
	Digits    int
	Algorithm Algorithm
}

// WithDefaults returns a copy with zero fields replaced by the
// defaults: a 30 second period, 6 digits, and SHA1.
func (o Options) WithDefaults() Options {
	if o.Period == 0 {
		o.Period = DefaultPeriod
	}
	if o.Digits == 0 {
		o.Digits = DefaultDigits
	}
	if o.Algorithm == "" {
		o.Algorithm = DefaultAlgorithm
	}
	return o
}

// Validate reports ErrInvalidParameter for any option outside its
// supported range. Generation validates internally; configuration
// layers can call it to reject bad values before storing or
// defaulting them.
func (o Options) Validate() error {
	if o.Period < minPeriod || o.Period > maxPeriod {
		return fmt.Errorf("%w: period must be %v-%v seconds, got %v",
			ErrInvalidParameter, minPeriod, maxPeriod, o.Period)
	}

	if o.Digits < minDigits || o.Digits > maxDigits {
		return fmt.Errorf("%w: digits must be %v-%v, got %v",
			ErrInvalidParameter, minDigits, maxDigits, o.Digits)
	}

	switch o.Algorithm {
	case SHA1, SHA256, SHA512:
	default:
		return fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidParameter, o.Algorithm)
	}

	return nil
}

// getHash hashes the counter using the secret and specified algo
// then returns the hash.
func getHash(secret []byte, algo Algorithm, counter uint64) ([]byte, error) {
	var counterBytes []byte = make([]byte, 8)

	// Encode counter in big endian
	binary.BigEndian.PutUint64(counterBytes, counter)

	var mac hash.Hash

	// Use the specified algorithm
	switch algo {
	case SHA1:
		mac = hmac.New(sha1.New, secret)
	case SHA256:
		mac = hmac.New(sha256.New, secret)
	case SHA512:
		mac = hmac.New(sha512.New, secret)
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidParameter, algo)
	}

	// Calculate the hash of the counter
	_, err := mac.Write(counterBytes)
	if err != nil {
		return nil, err
	}

	return mac.Sum(nil), nil
}

// truncate selects a 4 byte window from the digest using the low
// nibble of its final byte and masks the sign bit.
//
// https://tools.ietf.org/html/rfc4226#section-5.3
func truncate(digest []byte) int64 {
	offset := digest[len(digest)-1] & 0xf
	code := int64(((int(digest[offset]) & 0x7f) << 24) |
		((int(digest[offset+1] & 0xff)) << 16) |
		((int(digest[offset+2] & 0xff)) << 8) |
		(int(digest[offset+3]) & 0xff))

	return code
}
