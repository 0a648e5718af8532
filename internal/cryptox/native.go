package cryptox

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/dmitrijs2005/vaultguard/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

// Module is the raw contract of an encryption module: every call takes and
// returns JSON strings, and results use the {success, data?, error?} envelope.
type Module interface {
	EncryptUserIdentifier(masterPassword string) string
	DecryptUserIdentifier(masterPassword, identifierJSON string) string
	EncryptVaultItem(dek, plaintext string) string
	DecryptVaultItem(dek, itemJSON string) string
}

type moduleResponse[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond[T any](data T, err error) string {
	var r moduleResponse[T]
	if err != nil {
		r.Error = err.Error()
	} else {
		r.Success = true
		r.Data = &data
	}
	b, mErr := json.Marshal(r)
	if mErr != nil {
		return `{"success":false,"error":"failed to serialize response"}`
	}
	return string(b)
}

// Native is the in-process Module: argon2id for the master key,
// XChaCha20-Poly1305 for the DEK and for vault items.
type Native struct {
	params Params
}

type NativeOption func(*Native)

// WithParams overrides the argon2id cost used for new identifiers.
func WithParams(p Params) NativeOption {
	return func(n *Native) { n.params = p }
}

func NewNative(opts ...NativeOption) *Native {
	n := &Native{params: DefaultParams}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Native) EncryptUserIdentifier(masterPassword string) string {
	id, err := n.encryptUserIdentifier(masterPassword)
	return respond(id, err)
}

func (n *Native) DecryptUserIdentifier(masterPassword, identifierJSON string) string {
	data, err := n.decryptUserIdentifier(masterPassword, identifierJSON)
	return respond(data, err)
}

func (n *Native) EncryptVaultItem(dek, plaintext string) string {
	item, err := n.encryptVaultItem(dek, plaintext)
	return respond(item, err)
}

// DecryptVaultItem returns the plaintext base64-encoded, so arbitrary bytes
// survive the JSON envelope.
func (n *Native) DecryptVaultItem(dek, itemJSON string) string {
	plaintext, err := n.decryptVaultItem(dek, itemJSON)
	return respond(decryptedItem{Plaintext: plaintext}, err)
}

type decryptedItem struct {
	Plaintext []byte `json:"plaintext"`
}

func (n *Native) encryptUserIdentifier(masterPassword string) (models.Identifier, error) {
	if err := n.params.validate(); err != nil {
		return models.Identifier{}, err
	}

	salt := common.GenerateRandByteArray(saltSize)
	password := []byte(masterPassword)
	defer common.WipeByteArray(password)

	masterKey := DeriveMasterKey(password, salt, n.params)
	defer common.WipeByteArray(masterKey)

	dek := common.GenerateRandByteArray(keySize)
	defer common.WipeByteArray(dek)

	nonce := common.GenerateRandByteArray(chacha20poly1305.NonceSizeX)
	encrypted, err := seal(masterKey, dek, aadDEK, nonce)
	if err != nil {
		return models.Identifier{}, errEncryptionFailed
	}

	verifier, err := MakeAuthVerifier(masterKey, salt)
	if err != nil {
		return models.Identifier{}, err
	}

	return models.Identifier{
		EncryptedDEK: b64.EncodeToString(encrypted),
		Nonce:        b64.EncodeToString(nonce),
		Salt:         b64.EncodeToString(salt),
		Argon2Params: n.params.String(),
		AuthVerifier: b64.EncodeToString(verifier),
	}, nil
}

func (n *Native) decryptUserIdentifier(masterPassword, identifierJSON string) (models.LoginData, error) {
	var id models.Identifier
	if err := json.Unmarshal([]byte(identifierJSON), &id); err != nil {
		return models.LoginData{}, fmt.Errorf("json error: %w", err)
	}

	encrypted, err := b64.DecodeString(id.EncryptedDEK)
	if err != nil {
		return models.LoginData{}, fmt.Errorf("base64 decoding error: %w", err)
	}
	nonce, err := b64.DecodeString(id.Nonce)
	if err != nil {
		return models.LoginData{}, fmt.Errorf("base64 decoding error: %w", err)
	}
	salt, err := b64.DecodeString(id.Salt)
	if err != nil {
		return models.LoginData{}, fmt.Errorf("base64 decoding error: %w", err)
	}
	params, err := ParseParams(id.Argon2Params)
	if err != nil {
		return models.LoginData{}, err
	}

	password := []byte(masterPassword)
	defer common.WipeByteArray(password)

	masterKey := DeriveMasterKey(password, salt, params)
	defer common.WipeByteArray(masterKey)

	dek, err := open(masterKey, encrypted, aadDEK, nonce)
	if err != nil {
		return models.LoginData{}, err
	}
	defer common.WipeByteArray(dek)

	verifier, err := MakeAuthVerifier(masterKey, salt)
	if err != nil {
		return models.LoginData{}, err
	}

	return models.LoginData{
		DEK:          b64.EncodeToString(dek),
		AuthVerifier: b64.EncodeToString(verifier),
	}, nil
}

func decodeDEK(dek string) ([]byte, error) {
	key, err := b64.DecodeString(dek)
	if err != nil {
		return nil, fmt.Errorf("base64 decoding error: %w", err)
	}
	if len(key) != keySize {
		common.WipeByteArray(key)
		return nil, fmt.Errorf("invalid parameters: dek must be %d bytes", keySize)
	}
	return key, nil
}

func (n *Native) encryptVaultItem(dek, plaintext string) (models.CipherItem, error) {
	key, err := decodeDEK(dek)
	if err != nil {
		return models.CipherItem{}, err
	}
	defer common.WipeByteArray(key)

	nonce := common.GenerateRandByteArray(chacha20poly1305.NonceSizeX)
	encrypted, err := seal(key, []byte(plaintext), aadItem, nonce)
	if err != nil {
		return models.CipherItem{}, errEncryptionFailed
	}
	return models.CipherItem{
		EncryptedData: b64.EncodeToString(encrypted),
		Nonce:         b64.EncodeToString(nonce),
	}, nil
}

func (n *Native) decryptVaultItem(dek, itemJSON string) ([]byte, error) {
	var item models.CipherItem
	if err := json.Unmarshal([]byte(itemJSON), &item); err != nil {
		return nil, fmt.Errorf("json error: %w", err)
	}
	key, err := decodeDEK(dek)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	encrypted, err := b64.DecodeString(item.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("base64 decoding error: %w", err)
	}
	nonce, err := b64.DecodeString(item.Nonce)
	if err != nil {
		return nil, fmt.Errorf("base64 decoding error: %w", err)
	}
	return open(key, encrypted, aadItem, nonce)
}
