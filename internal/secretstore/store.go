// Package secretstore implements the encrypted local secret store (C5): a
// password-derived, scrypt-keyed, authenticated-encryption blob holding a
// nested path -> key -> value map.
//
// Grounded in _examples/Aureuma-si/tools/si/internal/vault's idea of an
// encrypted-at-rest secret file (crypto_age.go, keys.go), but §4.5 pins
// exact KDF parameters (scrypt N=2^18, r=8, p=1) that age's passphrase
// recipient only exposes as a single work-factor knob, not independent
// r/p — so this package calls golang.org/x/crypto/scrypt directly and
// seals the JSON blob with stdlib AES-256-GCM, an AEAD that "fails closed
// on tamper" exactly as §4.5 requires. See DESIGN.md for why filippo.io/age
// itself isn't wired here.
package secretstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/crypto/scrypt"

	"github.com/catalystcommunity/reactorcide/internal/errs"
)

// DefaultBaseDir returns the XDG-compliant default store directory,
// $XDG_CONFIG_HOME/reactorcide/secrets (falling back to ~/.config when
// XDG_CONFIG_HOME is unset), matching the store's original convention.
func DefaultBaseDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errs.Wrap(errs.KindSecretStore, "resolving home directory", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "reactorcide", "secrets"), nil
}

const (
	scryptN  = 1 << 18
	scryptR  = 8
	scryptP  = 1
	keyLen   = 32
	saltLen  = 32
	saltFile = "salt"
	blobFile = "secrets.enc"
)

var (
	pathPattern = regexp.MustCompile(`^[A-Za-z0-9/_-]+$`)
	keyPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Store is the on-disk encrypted secret store rooted at Dir.
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) saltPath() string { return filepath.Join(s.Dir, saltFile) }
func (s *Store) blobPath() string { return filepath.Join(s.Dir, blobFile) }

// Init creates the store directory, a fresh random salt, and an empty
// encrypted blob. If the store already exists, Init is a no-op unless
// force is set, in which case it is recreated (destroying existing data).
func (s *Store) Init(password string, force bool) error {
	if !force {
		if _, err := os.Stat(s.blobPath()); err == nil {
			return nil
		}
	}
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return errs.Wrap(errs.KindSecretStore, "creating store directory", err)
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return errs.Wrap(errs.KindSecretStore, "generating salt", err)
	}
	if err := os.WriteFile(s.saltPath(), salt, 0600); err != nil {
		return errs.Wrap(errs.KindSecretStore, "writing salt file", err)
	}
	return s.writeBlob(password, salt, map[string]map[string]string{})
}

func (s *Store) readSalt() ([]byte, error) {
	salt, err := os.ReadFile(s.saltPath())
	if err != nil {
		return nil, errs.Wrap(errs.KindSecretStore, "store not initialized", err)
	}
	return salt, nil
}

func (s *Store) deriveKey(password string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, errs.Wrap(errs.KindSecretStore, "deriving key", err)
	}
	return key, nil
}

func (s *Store) readBlob(password string) (map[string]map[string]string, error) {
	salt, err := s.readSalt()
	if err != nil {
		return nil, err
	}
	key, err := s.deriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.blobPath())
	if err != nil {
		return nil, errs.Wrap(errs.KindSecretStore, "reading store blob", err)
	}
	plain, err := decrypt(key, raw)
	if err != nil {
		return nil, errs.New(errs.KindSecretStore, "InvalidPassword")
	}
	var data map[string]map[string]string
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, errs.Wrap(errs.KindSecretStore, "malformed blob", err)
	}
	return data, nil
}

func (s *Store) writeBlob(password string, salt []byte, data map[string]map[string]string) error {
	key, err := s.deriveKey(password, salt)
	if err != nil {
		return err
	}
	plain, err := json.Marshal(data)
	if err != nil {
		return errs.Wrap(errs.KindSecretStore, "marshaling blob", err)
	}
	sealed, err := encrypt(key, plain)
	if err != nil {
		return errs.Wrap(errs.KindSecretStore, "sealing blob", err)
	}
	return os.WriteFile(s.blobPath(), sealed, 0600)
}

func (s *Store) rewrite(password string, data map[string]map[string]string) error {
	salt, err := s.readSalt()
	if err != nil {
		return err
	}
	return s.writeBlob(password, salt, data)
}

func validatePath(path string) error {
	if !pathPattern.MatchString(path) {
		return errs.WithField(errs.KindSecretStore, "path", "invalid path")
	}
	return nil
}

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return errs.WithField(errs.KindSecretStore, "key", "invalid key")
	}
	return nil
}

// Get returns the value at path/key, or (ok=false) if absent.
func (s *Store) Get(path, key, password string) (string, bool, error) {
	if err := validatePath(path); err != nil {
		return "", false, err
	}
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	data, err := s.readBlob(password)
	if err != nil {
		return "", false, err
	}
	entries, ok := data[path]
	if !ok {
		return "", false, nil
	}
	v, ok := entries[key]
	return v, ok, nil
}

// Set writes path/key = value, creating the path node if needed.
func (s *Store) Set(path, key, value, password string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := s.readBlob(password)
	if err != nil {
		return err
	}
	if data[path] == nil {
		data[path] = map[string]string{}
	}
	data[path][key] = value
	return s.rewrite(password, data)
}

// Delete removes path/key, returning whether it existed. Empty parent path
// nodes are removed so ListPaths stays tight (§4.5).
func (s *Store) Delete(path, key, password string) (bool, error) {
	if err := validatePath(path); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	data, err := s.readBlob(password)
	if err != nil {
		return false, err
	}
	entries, ok := data[path]
	if !ok {
		return false, nil
	}
	if _, ok := entries[key]; !ok {
		return false, nil
	}
	delete(entries, key)
	if len(entries) == 0 {
		delete(data, path)
	} else {
		data[path] = entries
	}
	if err := s.rewrite(password, data); err != nil {
		return false, err
	}
	return true, nil
}

// ListKeys returns every key under path.
func (s *Store) ListKeys(path, password string) ([]string, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	data, err := s.readBlob(password)
	if err != nil {
		return nil, err
	}
	entries := data[path]
	out := make([]string, 0, len(entries))
	for k := range entries {
		out = append(out, k)
	}
	return out, nil
}

// ListPaths returns every non-empty path node.
func (s *Store) ListPaths(password string) ([]string, error) {
	data, err := s.readBlob(password)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(data))
	for p := range data {
		out = append(out, p)
	}
	return out, nil
}

func encrypt(key, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func decrypt(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}
