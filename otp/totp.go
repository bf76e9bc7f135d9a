package otp

import (
	"fmt"
	"math"
	"time"
)

type TOTP struct {
	code   int64
	digits int
}

// Code returns the raw truncated value used for calculating the OTP.
func (totp TOTP) Code() any {
	return totp.code
}

// Digits returns the character/digit length of the OTP.
func (totp TOTP) Digits() int {
	return totp.digits
}

// String returns the calculated OTP
// used to authenticate with a service.
func (totp TOTP) String() string {
	var code int64 = totp.code % int64(math.Pow10(totp.digits))

	// Create a dynamic format to pad with zeroes up to the digit length. ex. %05d
	var codeFormat string = fmt.Sprintf("%%0%dd", totp.digits)

	return fmt.Sprintf(codeFormat, code)
}

// GenerateTOTP generates a TOTP for the current time.
func GenerateTOTP(secret string, opts Options) (TOTP, error) {
	return GenerateTOTPAt(secret, opts, time.Now().Unix())
}

// GenerateTOTPAt generates a TOTP at the specified Unix time in
// seconds. The secret is decoded, used to key a single HMAC, and
// wiped before return on every path.
func GenerateTOTPAt(secret string, opts Options, seconds int64) (TOTP, error) {
	if err := opts.Validate(); err != nil {
		return TOTP{}, err
	}

	if seconds < 0 {
		return TOTP{}, fmt.Errorf("%w: timestamp must not be negative, got %v",
			ErrInvalidParameter, seconds)
	}

	key, err := DecodeSecret(secret)
	if err != nil {
		return TOTP{}, err
	}
	defer Wipe(key)

	// RFC 6238 section 4: the counter is the number of whole periods
	// since the Unix epoch
	var counter uint64 = uint64(seconds) / uint64(opts.Period)

	digest, err := getHash(key, opts.Algorithm, counter)
	if err != nil {
		return TOTP{}, err
	}

	return TOTP{code: truncate(digest), digits: opts.Digits}, nil
}
