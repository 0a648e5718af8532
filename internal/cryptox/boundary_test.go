package cryptox

import (
	"errors"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/vaultguard/internal/client/apperr"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = Params{Memory: 64, Time: 1, Threads: 1}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	return NewNativeAdapter(WithParams(fastParams))
}

func TestDeriveThenUnlock_RecoversSameDEK(t *testing.T) {
	a := newTestAdapter(t)

	id, err := a.DeriveIdentifier("Correct-Horse-1!")
	require.NoError(t, err)
	assert.Equal(t, fastParams.String(), id.Argon2Params)
	assert.NotEmpty(t, id.AuthVerifier)

	first, err := a.UnlockIdentifier("Correct-Horse-1!", id)
	require.NoError(t, err)
	second, err := a.UnlockIdentifier("Correct-Horse-1!", id)
	require.NoError(t, err)

	assert.Equal(t, first.DEK, second.DEK)
	assert.Equal(t, id.AuthVerifier, first.AuthVerifier)
}

func TestUnlock_WrongPasswordIsCryptoError(t *testing.T) {
	a := newTestAdapter(t)
	id, err := a.DeriveIdentifier("right-password")
	require.NoError(t, err)

	_, err = a.UnlockIdentifier("wrong-password", id)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrCrypto)
}

func TestUnlock_MalformedIdentifier(t *testing.T) {
	a := newTestAdapter(t)
	good, err := a.DeriveIdentifier("pw")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*models.Identifier)
	}{
		{"bad base64 dek", func(id *models.Identifier) { id.EncryptedDEK = "%%%" }},
		{"bad base64 nonce", func(id *models.Identifier) { id.Nonce = "%%%" }},
		{"short nonce", func(id *models.Identifier) { id.Nonce = "AAAA" }},
		{"bad params", func(id *models.Identifier) { id.Argon2Params = "algo=scrypt" }},
		{"zero passes", func(id *models.Identifier) { id.Argon2Params = "m=64,t=0,p=1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := good
			tt.mutate(&id)
			_, err := a.UnlockIdentifier("pw", id)
			assert.ErrorIs(t, err, apperr.ErrCrypto)
		})
	}
}

func TestEncryptDecryptItem_RoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	id, err := a.DeriveIdentifier("pw")
	require.NoError(t, err)
	login, err := a.UnlockIdentifier("pw", id)
	require.NoError(t, err)

	for _, plaintext := range []string{
		"",
		"hello",
		"nul\x00inside\x00",
		"ünïcødé - 密码 🔐",
		"a\xffb\xc3",
		string([]byte{0xfe, 0x00, 0x80}),
		`{"usernameOrEmail":"bob","password":"p@ss"}`,
	} {
		item, err := a.EncryptItem(login.DEK, plaintext)
		require.NoError(t, err)

		got, err := a.DecryptItem(login.DEK, item)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestDecryptItem_TamperedOrWrongKey(t *testing.T) {
	a := newTestAdapter(t)
	dek := b64.EncodeToString(make([]byte, keySize))
	other := b64.EncodeToString(append(make([]byte, keySize-1), 1))

	item, err := a.EncryptItem(dek, "secret")
	require.NoError(t, err)

	_, err = a.DecryptItem(other, item)
	assert.ErrorIs(t, err, apperr.ErrCrypto)

	raw, _ := b64.DecodeString(item.EncryptedData)
	raw[0] ^= 0xff
	item.EncryptedData = b64.EncodeToString(raw)
	_, err = a.DecryptItem(dek, item)
	assert.ErrorIs(t, err, apperr.ErrCrypto)
}

func TestEncryptItem_InvalidDEK(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.EncryptItem("not-base64!", "x")
	assert.ErrorIs(t, err, apperr.ErrCrypto)

	_, err = a.EncryptItem(b64.EncodeToString([]byte("short")), "x")
	assert.ErrorIs(t, err, apperr.ErrCrypto)
}

type stubModule struct {
	raw string
}

func (s stubModule) EncryptUserIdentifier(string) string         { return s.raw }
func (s stubModule) DecryptUserIdentifier(string, string) string { return s.raw }
func (s stubModule) EncryptVaultItem(string, string) string      { return s.raw }
func (s stubModule) DecryptVaultItem(string, string) string      { return s.raw }

func TestAdapter_ModuleEnvelopes(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantStatus int
		wantMsg    string
	}{
		{"success false", `{"success":false,"error":"Argon2 error: boom"}`, http.StatusBadRequest, "Argon2 error: boom"},
		{"success false without message", `{"success":false}`, http.StatusBadRequest, "crypto operation failed"},
		{"missing data", `{"success":true}`, http.StatusInternalServerError, "crypto response missing data"},
		{"garbage", `not json`, http.StatusBadRequest, "malformed crypto module response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(func() (Module, error) { return stubModule{raw: tt.raw}, nil })

			_, err := a.DeriveIdentifier("pw")

			var e *apperr.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, apperr.KindCrypto, e.Kind)
			assert.Equal(t, tt.wantStatus, e.Status)
			assert.Equal(t, tt.wantMsg, e.Message)
		})
	}
}

func TestAdapter_DecryptItemDecodesBase64Plaintext(t *testing.T) {
	a := NewAdapter(func() (Module, error) {
		return stubModule{raw: `{"success":true,"data":{"plaintext":"Yf9i"}}`}, nil
	})

	got, err := a.DecryptItem("dek", models.CipherItem{})
	require.NoError(t, err)
	assert.Equal(t, "a\xffb", got)
}

func TestAdapter_InitFailureIsCryptoErrorOnEveryCall(t *testing.T) {
	calls := 0
	a := NewAdapter(func() (Module, error) {
		calls++
		return nil, errors.New("module not found")
	})

	_, err := a.UnlockIdentifier("pw", models.Identifier{})
	assert.ErrorIs(t, err, apperr.ErrCrypto)
	_, err = a.EncryptItem("dek", "x")
	assert.ErrorIs(t, err, apperr.ErrCrypto)

	assert.Equal(t, 1, calls, "module is loaded once")
}
