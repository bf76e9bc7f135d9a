package otp

import (
	"errors"
	"testing"
	"time"

	potp "github.com/pquerna/otp"
	ptotp "github.com/pquerna/otp/totp"
)

// The RFC 6238 Appendix B test keys: the ASCII strings
// "12345678901234567890...", 20, 32, and 64 bytes long, Base32 encoded.
const (
	rfcSecretSHA1   = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	rfcSecretSHA256 = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZA"
	rfcSecretSHA512 = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ" +
		"GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNA"
)

// TestRFC6238Vectors checks the published Appendix B vectors for all
// three hash algorithms.
func TestRFC6238Vectors(t *testing.T) {
	tests := []struct {
		algo    Algorithm
		secret  string
		seconds int64
		want    string
	}{
		{SHA1, rfcSecretSHA1, 59, "94287082"},
		{SHA1, rfcSecretSHA1, 1111111109, "07081804"},
		{SHA1, rfcSecretSHA1, 1111111111, "14050471"},
		{SHA1, rfcSecretSHA1, 1234567890, "89005924"},
		{SHA1, rfcSecretSHA1, 2000000000, "69279037"},
		{SHA1, rfcSecretSHA1, 20000000000, "65353130"},
		{SHA256, rfcSecretSHA256, 59, "46119246"},
		{SHA256, rfcSecretSHA256, 1111111109, "68084774"},
		{SHA256, rfcSecretSHA256, 1111111111, "67062674"},
		{SHA256, rfcSecretSHA256, 1234567890, "91819424"},
		{SHA256, rfcSecretSHA256, 2000000000, "90698825"},
		{SHA256, rfcSecretSHA256, 20000000000, "77737706"},
		{SHA512, rfcSecretSHA512, 59, "90693936"},
		{SHA512, rfcSecretSHA512, 1111111109, "25091201"},
		{SHA512, rfcSecretSHA512, 1111111111, "99943326"},
		{SHA512, rfcSecretSHA512, 1234567890, "93441116"},
		{SHA512, rfcSecretSHA512, 2000000000, "38618901"},
		{SHA512, rfcSecretSHA512, 20000000000, "47863826"},
	}

	for _, tt := range tests {
		opts := Options{Digits: 8, Algorithm: tt.algo}.WithDefaults()

		pass, err := GenerateTOTPAt(tt.secret, opts, tt.seconds)
		if err != nil {
			t.Fatalf("%v at %v: unexpected error: %v", tt.algo, tt.seconds, err)
		}

		if pass.String() != tt.want {
			t.Errorf("%v at %v: got %v, want %v", tt.algo, tt.seconds, pass.String(), tt.want)
		}
	}
}

func TestDeterminism(t *testing.T) {
	opts := Options{Digits: 7, Algorithm: SHA256}.WithDefaults()

	first, err := GenerateTOTPAt(rfcSecretSHA1, opts, 1234567890)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		again, err := GenerateTOTPAt(rfcSecretSHA1, opts, 1234567890)
		if err != nil {
			t.Fatal(err)
		}

		if again.String() != first.String() {
			t.Fatalf("repeated call diverged: %v vs %v", again.String(), first.String())
		}
	}
}

// TestDigitWidth checks the output is always zero padded to exactly
// the requested width.
func TestDigitWidth(t *testing.T) {
	for digits := 5; digits <= 9; digits++ {
		for _, seconds := range []int64{0, 59, 1111111109, 1234567890, 2000000000} {
			pass, err := GenerateTOTPAt(rfcSecretSHA1, Options{Digits: digits}.WithDefaults(), seconds)
			if err != nil {
				t.Fatal(err)
			}

			if len(pass.String()) != digits {
				t.Errorf("digits=%v at %v: got %q, want length %v", digits, seconds, pass.String(), digits)
			}
		}
	}

	// A small raw value must render fully padded
	if got := (TOTP{code: 42, digits: 6}).String(); got != "000042" {
		t.Errorf("got %q, want %q", got, "000042")
	}
}

func TestTimeStepBoundary(t *testing.T) {
	opts := Options{}.WithDefaults()

	within, err := GenerateTOTPAt(rfcSecretSHA1, opts, 30)
	if err != nil {
		t.Fatal(err)
	}

	same, err := GenerateTOTPAt(rfcSecretSHA1, opts, 59)
	if err != nil {
		t.Fatal(err)
	}

	if within.String() != same.String() {
		t.Errorf("timestamps 30 and 59 share a window but codes differ: %v vs %v",
			within.String(), same.String())
	}

	next, err := GenerateTOTPAt(rfcSecretSHA1, opts, 60)
	if err != nil {
		t.Fatal(err)
	}

	// Not guaranteed distinct, but these specific windows are
	if next.String() == within.String() {
		t.Errorf("adjacent windows produced the same code %v", next.String())
	}
}

func TestParameterValidation(t *testing.T) {
	valid := Options{Period: 30, Digits: 6, Algorithm: SHA1}

	tests := []struct {
		name    string
		mutate  func(Options) Options
		seconds int64
	}{
		{"digits too small", func(o Options) Options { o.Digits = 4; return o }, 59},
		{"digits too large", func(o Options) Options { o.Digits = 10; return o }, 59},
		{"zero period", func(o Options) Options { o.Period = 0; return o }, 59},
		{"period below range", func(o Options) Options { o.Period = 29; return o }, 59},
		{"period above range", func(o Options) Options { o.Period = 121; return o }, 59},
		{"unknown algorithm", func(o Options) Options { o.Algorithm = "MD5"; return o }, 59},
		{"negative timestamp", func(o Options) Options { return o }, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateTOTPAt(rfcSecretSHA1, tt.mutate(valid), tt.seconds)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("got %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	pass, err := GenerateTOTPAt(rfcSecretSHA1, Options{}.WithDefaults(), 59)
	if err != nil {
		t.Fatal(err)
	}

	explicit, err := GenerateTOTPAt(rfcSecretSHA1, Options{Period: 30, Digits: 6, Algorithm: SHA1}, 59)
	if err != nil {
		t.Fatal(err)
	}

	if pass.String() != explicit.String() {
		t.Errorf("defaults %v differ from explicit 30/6/SHA1 %v", pass.String(), explicit.String())
	}

	if pass.Digits() != 6 {
		t.Errorf("got %v digits, want 6", pass.Digits())
	}
}

// TestAgainstReferenceLibrary cross-checks generation against the
// pquerna/otp implementation over a spread of timestamps.
func TestAgainstReferenceLibrary(t *testing.T) {
	tests := []struct {
		algo   Algorithm
		refAlg potp.Algorithm
		secret string
	}{
		{SHA1, potp.AlgorithmSHA1, rfcSecretSHA1},
		{SHA256, potp.AlgorithmSHA256, rfcSecretSHA256},
		{SHA512, potp.AlgorithmSHA512, rfcSecretSHA512},
	}

	timestamps := []int64{1, 59, 99999, 1234567890, 2000000000, 20000000000}

	for _, tt := range tests {
		for _, digits := range []potp.Digits{potp.DigitsSix, potp.DigitsEight} {
			for _, seconds := range timestamps {
				pass, err := GenerateTOTPAt(tt.secret, Options{
					Digits:    int(digits),
					Algorithm: tt.algo,
				}.WithDefaults(), seconds)
				if err != nil {
					t.Fatal(err)
				}

				want, err := ptotp.GenerateCodeCustom(tt.secret, time.Unix(seconds, 0).UTC(),
					ptotp.ValidateOpts{
						Period:    30,
						Digits:    digits,
						Algorithm: tt.refAlg,
					})
				if err != nil {
					t.Fatal(err)
				}

				if pass.String() != want {
					t.Errorf("%v/%v at %v: got %v, reference library says %v",
						tt.algo, digits, seconds, pass.String(), want)
				}
			}
		}
	}
}

func TestConcurrentGeneration(t *testing.T) {
	done := make(chan error, 8)

	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				pass, err := GenerateTOTPAt(rfcSecretSHA1, Options{Digits: 8}.WithDefaults(), 59)
				if err == nil && pass.String() != "94287082" {
					err = errors.New("code mismatch under concurrency")
				}
				if err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
	}

	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
}
