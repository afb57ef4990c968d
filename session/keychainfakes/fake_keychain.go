// Package keychainfakes provides an in-memory Keychain for tests.
package keychainfakes

import (
	"context"
	"sync"

	"github.com/spotin-app/spotin-go/session"
)

var _ session.Keychain = (*FakeKeychain)(nil)

// FakeKeychain is a map-backed Keychain with per-operation failure injection.
type FakeKeychain struct {
	lock   sync.RWMutex
	values map[string]string

	// When set, the corresponding operation fails with this error.
	GetErr    error
	SetErr    error
	DeleteErr error
}

func NewFakeKeychain() *FakeKeychain {
	return &FakeKeychain{
		values: make(map[string]string),
	}
}

func (k *FakeKeychain) Get(_ context.Context, key string) (string, error) {
	if k.GetErr != nil {
		return "", k.GetErr
	}
	k.lock.RLock()
	defer k.lock.RUnlock()

	value, ok := k.values[key]
	if !ok {
		return "", session.ErrKeyNotFound
	}
	return value, nil
}

func (k *FakeKeychain) Set(_ context.Context, key, value string) error {
	if k.SetErr != nil {
		return k.SetErr
	}
	k.lock.Lock()
	defer k.lock.Unlock()

	k.values[key] = value
	return nil
}

func (k *FakeKeychain) Delete(_ context.Context, key string) error {
	if k.DeleteErr != nil {
		return k.DeleteErr
	}
	k.lock.Lock()
	defer k.lock.Unlock()

	delete(k.values, key)
	return nil
}

// Len returns the number of stored keys.
func (k *FakeKeychain) Len() int {
	k.lock.RLock()
	defer k.lock.RUnlock()
	return len(k.values)
}

// Seed stores key/value directly, bypassing failure injection.
func (k *FakeKeychain) Seed(key, value string) {
	k.lock.Lock()
	defer k.lock.Unlock()
	k.values[key] = value
}
