// Package securefile is a file-backed implementation of session.Keychain.
// Values are sealed individually with XChaCha20-Poly1305 and kept in a single
// JSON file, standing in for the mobile platform's secure storage.
package securefile

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/spotin-app/spotin-go/session"
)

var _ session.Keychain = (*Store)(nil)

// Store persists sealed key/value pairs to a single file. Safe for concurrent
// use within one process; the file is rewritten atomically on every mutation.
type Store struct {
	path string
	aead cipher.AEAD

	lock sync.Mutex
}

// New opens (or lazily creates) the store at path. key must be exactly 32 bytes.
func New(path string, key []byte) (*Store, error) {
	if path == "" {
		return nil, errors.New("[securefile.New] path is required")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[securefile.New] initialising cipher")
	}
	return &Store{path: path, aead: aead}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	sealed, ok := entries[key]
	if !ok {
		return "", session.ErrKeyNotFound
	}
	value, err := s.open(sealed)
	if err != nil {
		return "", errors.Wrapf(err, "[Store.Get] unsealing %q", key)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	sealed, err := s.seal(value)
	if err != nil {
		return errors.Wrapf(err, "[Store.Set] sealing %q", key)
	}
	entries[key] = sealed
	return s.save(entries)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Store.load] reading store file")
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "[Store.load] decoding store file")
	}
	return entries, nil
}

func (s *Store) save(entries map[string]string) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "[Store.save] encoding store file")
	}

	// Write-then-rename so a crash mid-write never leaves a torn file.
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "[Store.save] creating store directory")
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[Store.save] writing store file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "[Store.save] replacing store file")
	}
	return nil
}

func (s *Store) seal(value string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Store) open(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return "", errors.New("sealed value too short")
	}
	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
