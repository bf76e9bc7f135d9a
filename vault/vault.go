// Package vault provides an encrypted on-disk store for named OTP
// secrets. The store is a single JSON file whose entry list is sealed
// with AES-256-GCM under an scrypt-derived key.
package vault

import (
	"errors"
	"fmt"
)

// Errors reported by the store.
var (
	// ErrWrongPassphrase indicates the passphrase failed to
	// authenticate the vault contents.
	ErrWrongPassphrase = errors.New("vault: wrong passphrase or corrupt vault")
	// ErrNoEntry indicates a lookup for a name the vault does not hold.
	ErrNoEntry = errors.New("vault: no such entry")
)

// Entry types.
const (
	TypeTOTP string = "totp"
	TypeHOTP string = "hotp"
)

// Vault is the plaintext entry list.
type Vault struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Entry holds one named secret and its generation parameters.
// The secret is stored in Base32 form as supplied; it is normalized
// and decoded at generation time, not at rest.
type Entry struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Secret  string `json:"secret"`
	Algo    string `json:"algo,omitempty"`
	Digits  int    `json:"digits,omitempty"`
	Period  int64  `json:"period,omitempty"`
	Counter uint64 `json:"counter,omitempty"`
}

// Entry returns a pointer to the named entry so callers can update
// it in place, e.g. to advance an HOTP counter.
func (v *Vault) Entry(name string) (*Entry, error) {
	for i := range v.Entries {
		if v.Entries[i].Name == name {
			return &v.Entries[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrNoEntry, name)
}

// Put adds the entry, replacing any existing entry with the same name.
func (v *Vault) Put(entry Entry) {
	for i := range v.Entries {
		if v.Entries[i].Name == entry.Name {
			v.Entries[i] = entry
			return
		}
	}

	v.Entries = append(v.Entries, entry)
}

// Remove deletes the named entry.
func (v *Vault) Remove(name string) error {
	for i := range v.Entries {
		if v.Entries[i].Name == name {
			v.Entries = append(v.Entries[:i], v.Entries[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrNoEntry, name)
}

func (e Entry) String() string {
	var outputFormat string = "Entry{ name: %v, type: %v, algo: %v, digits: %v"

	var fields []any = []any{e.Name, e.Type, e.Algo, e.Digits}

	// Only one of period and counter is meaningful per type
	if e.Type == TypeHOTP {
		outputFormat += ", counter: %v"
		fields = append(fields, e.Counter)
	} else {
		outputFormat += ", period: %v"
		fields = append(fields, e.Period)
	}

	outputFormat += " }"

	return fmt.Sprintf(outputFormat, fields...)
}
