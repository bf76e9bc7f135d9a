package otp

import (
	"fmt"
	"math"
)

type HOTP struct {
	code   int64
	digits int
}

// Code returns the raw truncated value used for calculating the OTP.
func (hotp HOTP) Code() any {
	return hotp.code
}

// Digits returns the character/digit length of the OTP.
func (hotp HOTP) Digits() int {
	return hotp.digits
}

// String returns the calculated OTP
// used to authenticate with a service.
func (hotp HOTP) String() string {
	var code int64 = hotp.code % int64(math.Pow10(hotp.digits))

	var codeFormat string = fmt.Sprintf("%%0%dd", hotp.digits)

	return fmt.Sprintf(codeFormat, code)
}

// GenerateHOTP generates an HOTP for the provided counter value.
// Options.Period is ignored; counter synchronization is the caller's
// responsibility. The secret is wiped before return on every path.
func GenerateHOTP(secret string, opts Options, counter uint64) (HOTP, error) {
	// HOTP has no time period, so only digits and algorithm apply
	if err := (Options{Period: DefaultPeriod, Digits: opts.Digits, Algorithm: opts.Algorithm}).Validate(); err != nil {
		return HOTP{}, err
	}

	key, err := DecodeSecret(secret)
	if err != nil {
		return HOTP{}, err
	}
	defer Wipe(key)

	digest, err := getHash(key, opts.Algorithm, counter)
	if err != nil {
		return HOTP{}, err
	}

	return HOTP{code: truncate(digest), digits: opts.Digits}, nil
}
