package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keySize  = 32
	saltSize = 16
)

// Associated data binds ciphertexts to their purpose.
var (
	aadDEK      = []byte("vault_v1|type=dek|aead=xchacha20poly1305|kdf=argon2id")
	aadItem     = []byte("vault_v1|type=item|aead=xchacha20poly1305")
	infoAuthKey = []byte("vault_v1|type=auth_verifier|kdf=hkdf-sha256")
)

var (
	errDecryptionFailed = errors.New("decryption failed")
	errEncryptionFailed = errors.New("encryption failed")
)

var b64 = base64.StdEncoding

// DeriveMasterKey stretches the master password with argon2id. The result
// must be wiped by the caller.
func DeriveMasterKey(password []byte, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, keySize)
}

// MakeAuthVerifier derives the value the server checks at login. It is a
// one-way function of the master key, so it reveals neither key nor DEK.
func MakeAuthVerifier(masterKey, salt []byte) ([]byte, error) {
	out := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, salt, infoAuthKey), out); err != nil {
		return nil, err
	}
	return out, nil
}

func seal(key, plaintext, aad []byte, nonce []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func open(key, ciphertext, aad, nonce []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errDecryptionFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errDecryptionFailed
	}
	return plaintext, nil
}
