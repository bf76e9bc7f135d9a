package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"

	"github.com/opsbits/totpgen/otp"
)

const fileVersion int = 1

// Default scrypt cost parameters for newly created vaults.
const (
	defN int = 32768
	defR int = 8
	defP int = 1
)

const (
	keyLen  int = 32
	saltLen int = 16
)

// vaultFile is the on-disk envelope. The entry list is serialized to
// JSON, sealed with AES-256-GCM, and stored base64 encoded in Db.
type vaultFile struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	N       int    `json:"n"`
	R       int    `json:"r"`
	P       int    `json:"p"`
	Nonce   string `json:"nonce"`
	Db      string `json:"db"`
}

// deriveKey stretches the passphrase into an AES key using the
// file's scrypt parameters.
func deriveKey(passphrase []byte, salt []byte, n int, r int, p int) ([]byte, error) {
	return scrypt.Key(passphrase, salt, n, r, p, keyLen)
}

func readVaultFile(path string) (*vaultFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var vf vaultFile

	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("vault: malformed vault file: %w", err)
	}

	if vf.Version != fileVersion {
		return nil, fmt.Errorf("vault: unsupported vault version %v", vf.Version)
	}

	return &vf, nil
}

// Load reads and decrypts the vault at the path. A passphrase that
// fails to authenticate the contents yields ErrWrongPassphrase.
func Load(path string, passphrase []byte) (*Vault, error) {
	vf, err := readVaultFile(path)
	if err != nil {
		return nil, err
	}

	salt, err := hex.DecodeString(vf.Salt)
	if err != nil {
		return nil, fmt.Errorf("vault: malformed salt: %w", err)
	}

	nonce, err := hex.DecodeString(vf.Nonce)
	if err != nil {
		return nil, fmt.Errorf("vault: malformed nonce: %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(vf.Db)
	if err != nil {
		return nil, fmt.Errorf("vault: malformed contents: %w", err)
	}

	key, err := deriveKey(passphrase, salt, vf.N, vf.R, vf.P)
	if err != nil {
		return nil, err
	}
	defer otp.Wipe(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// GCM authentication failure is indistinguishable from a wrong
	// passphrase, so both surface as ErrWrongPassphrase
	content, err := aesgcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	defer otp.Wipe(content)

	var v Vault

	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("vault: malformed contents: %w", err)
	}

	return &v, nil
}

// Save encrypts the vault and writes it to the path. An existing
// vault file keeps its salt and cost parameters; a new one gets a
// fresh random salt and the defaults. The nonce is regenerated on
// every save.
func Save(path string, passphrase []byte, v *Vault) error {
	var salt []byte
	var n, r, p int = defN, defR, defP

	prev, err := readVaultFile(path)
	switch {
	case err == nil:
		salt, err = hex.DecodeString(prev.Salt)
		if err != nil {
			return fmt.Errorf("vault: malformed salt: %w", err)
		}
		n, r, p = prev.N, prev.R, prev.P
	case errors.Is(err, os.ErrNotExist):
		salt = make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return err
		}
	default:
		return err
	}

	key, err := deriveKey(passphrase, salt, n, r, p)
	if err != nil {
		return err
	}
	defer otp.Wipe(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	v.Version = fileVersion

	content, err := json.Marshal(v)
	if err != nil {
		return err
	}
	defer otp.Wipe(content)

	sealed := aesgcm.Seal(nil, nonce, content, nil)

	vf := vaultFile{
		Version: fileVersion,
		Salt:    hex.EncodeToString(salt),
		N:       n,
		R:       r,
		P:       p,
		Nonce:   hex.EncodeToString(nonce),
		Db:      base64.StdEncoding.EncodeToString(sealed),
	}

	data, err := json.Marshal(&vf)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
