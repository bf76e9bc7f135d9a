// Package totpgen generates one-time passwords from Base32 shared
// secrets, either supplied directly or read from an encrypted local
// secret store.
package totpgen

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	otpauth "github.com/pquerna/otp"

	"github.com/opsbits/totpgen/otp"
	"github.com/opsbits/totpgen/vault"
)

const defPeriod int64 = 30 // The default TOTP refresh interval

// DefaultVaultPath returns the standard location of the secret store,
// a vault file under the user's configuration directory.
func DefaultVaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "totpgen", "vault.json"), nil
}

// CodeForEntry generates an OTP from the provided entry data
// for the current time.
func CodeForEntry(entry *vault.Entry) (string, error) {
	return CodeForEntryAt(entry, time.Now().Unix())
}

// CodeForEntryAt generates an OTP from the provided entry data at the
// specified Unix time in seconds. Zero-valued entry fields select the
// defaults, matching their omission from the stored form.
//
// For hotp entries the entry's counter is advanced in place; callers
// persist the change by saving the vault.
func CodeForEntryAt(entry *vault.Entry, seconds int64) (string, error) {
	var opts otp.Options = otp.Options{
		Period:    entry.Period,
		Digits:    entry.Digits,
		Algorithm: otp.Algorithm(entry.Algo),
	}.WithDefaults()

	switch entry.Type {
	case "", vault.TypeTOTP:
		pass, err := otp.GenerateTOTPAt(entry.Secret, opts, seconds)
		if err != nil {
			return "", err
		}

		return pass.String(), nil
	case vault.TypeHOTP:
		pass, err := otp.GenerateHOTP(entry.Secret, opts, entry.Counter)
		if err != nil {
			return "", err
		}

		entry.Counter++

		return pass.String(), nil
	default:
		return "", fmt.Errorf("unsupported otp type %q", entry.Type)
	}
}

// FromURI parses an otpauth:// URI into a store entry.
func FromURI(uri string) (*vault.Entry, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid otpauth uri: %w", err)
	}

	if u.Scheme != "otpauth" {
		return nil, fmt.Errorf("invalid otpauth uri: scheme %q", u.Scheme)
	}

	key, err := otpauth.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid otpauth uri: %w", err)
	}

	switch key.Type() {
	case vault.TypeTOTP, vault.TypeHOTP:
	default:
		return nil, fmt.Errorf("invalid otpauth uri: unsupported type %q", key.Type())
	}

	if key.Secret() == "" {
		return nil, fmt.Errorf("invalid otpauth uri: missing secret")
	}

	var entry vault.Entry = vault.Entry{
		Name:   key.AccountName(),
		Type:   key.Type(),
		Secret: key.Secret(),
		Period: int64(key.Period()),
	}

	// The query carries the optional parameters the Key type doesn't expose
	query := u.Query()

	if algo := query.Get("algorithm"); algo != "" {
		entry.Algo = strings.ToUpper(algo)
	}

	if digits := query.Get("digits"); digits != "" {
		entry.Digits, err = strconv.Atoi(digits)
		if err != nil {
			return nil, fmt.Errorf("invalid otpauth uri: digits: %w", err)
		}
	}

	if counter := query.Get("counter"); counter != "" {
		entry.Counter, err = strconv.ParseUint(counter, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid otpauth uri: counter: %w", err)
		}
	}

	return &entry, nil
}

// TTN calculates the time in millis until the next OTP refresh using the default period.
func TTN() int64 {
	return TTNPer(defPeriod)
}

// TTNPer calculates the time in millis until the next OTP refresh using the provided period.
func TTNPer(period int64) int64 {
	var p int64 = period * 1000

	return p - (time.Now().UnixMilli() % p)
}

// TTNAt calculates the time in millis until the next OTP refresh
// following the provided Unix time in seconds.
func TTNAt(seconds int64, period int64) int64 {
	var p int64 = period * 1000

	return p - ((seconds * 1000) % p)
}
