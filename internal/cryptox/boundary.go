// Package cryptox is the crypto boundary of the client. Controllers call the
// Boundary interface; the Adapter forwards to an encryption Module that speaks
// JSON envelopes and turns every failure, including a failed module load,
// into an apperr CryptoError. Crypto calls are never retried.
package cryptox

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/vaultguard/internal/client/apperr"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
)

// Boundary is what the rest of the client needs from an encryption module.
type Boundary interface {
	// DeriveIdentifier creates a fresh DEK sealed under masterPassword.
	DeriveIdentifier(masterPassword string) (models.Identifier, error)
	// UnlockIdentifier recovers the DEK and the login verifier.
	UnlockIdentifier(masterPassword string, id models.Identifier) (models.LoginData, error)
	EncryptItem(dek, plaintext string) (models.CipherItem, error)
	DecryptItem(dek string, item models.CipherItem) (string, error)
}

// Adapter implements Boundary over a lazily loaded Module.
type Adapter struct {
	load func() (Module, error)

	once    sync.Once
	module  Module
	loadErr error
}

// NewAdapter defers load until the first crypto call.
func NewAdapter(load func() (Module, error)) *Adapter {
	return &Adapter{load: load}
}

// NewNativeAdapter is an Adapter over the in-process Native module.
func NewNativeAdapter(opts ...NativeOption) *Adapter {
	n := NewNative(opts...)
	return NewAdapter(func() (Module, error) { return n, nil })
}

func (a *Adapter) get() (Module, error) {
	a.once.Do(func() {
		a.module, a.loadErr = a.load()
	})
	if a.loadErr != nil {
		e := apperr.NewCrypto("crypto module initialization failed", a.loadErr)
		e.Status = http.StatusInternalServerError
		return nil, e
	}
	return a.module, nil
}

func parseResponse[T any](raw string) (T, error) {
	var zero T
	var r moduleResponse[T]
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return zero, apperr.NewCrypto("malformed crypto module response", err)
	}
	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = "crypto operation failed"
		}
		return zero, apperr.NewCrypto(msg, nil)
	}
	if r.Data == nil {
		e := apperr.NewCrypto("crypto response missing data", nil)
		e.Status = http.StatusInternalServerError
		return zero, e
	}
	return *r.Data, nil
}

func (a *Adapter) DeriveIdentifier(masterPassword string) (models.Identifier, error) {
	m, err := a.get()
	if err != nil {
		return models.Identifier{}, err
	}
	return parseResponse[models.Identifier](m.EncryptUserIdentifier(masterPassword))
}

func (a *Adapter) UnlockIdentifier(masterPassword string, id models.Identifier) (models.LoginData, error) {
	m, err := a.get()
	if err != nil {
		return models.LoginData{}, err
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return models.LoginData{}, apperr.NewCrypto("cannot encode identifier", err)
	}
	return parseResponse[models.LoginData](m.DecryptUserIdentifier(masterPassword, string(raw)))
}

func (a *Adapter) EncryptItem(dek, plaintext string) (models.CipherItem, error) {
	m, err := a.get()
	if err != nil {
		return models.CipherItem{}, err
	}
	return parseResponse[models.CipherItem](m.EncryptVaultItem(dek, plaintext))
}

func (a *Adapter) DecryptItem(dek string, item models.CipherItem) (string, error) {
	m, err := a.get()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return "", apperr.NewCrypto("cannot encode vault item", err)
	}
	out, err := parseResponse[decryptedItem](m.DecryptVaultItem(dek, string(raw)))
	if err != nil {
		return "", err
	}
	return string(out.Plaintext), nil
}
