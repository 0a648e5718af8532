// Package models defines the client-side data shapes exchanged with the API
// and the crypto boundary.
package models

// UserInfo is the server's view of the signed-in account. The client treats
// it as immutable and replaces it wholesale.
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Identifier is the server-held encrypted DEK bundle for one account.
type Identifier struct {
	EncryptedDEK string `json:"encryptedDek"`
	Nonce        string `json:"nonce"`
	Salt         string `json:"salt"`
	Argon2Params string `json:"argon2Params"`
	AuthVerifier string `json:"authVerifier"`
}

// LoginData is what unlocking an Identifier yields.
type LoginData struct {
	DEK          string `json:"dek"`
	AuthVerifier string `json:"authVerifier"`
}

// CipherItem is an AEAD-sealed payload, base64 encoded.
type CipherItem struct {
	EncryptedData string `json:"encryptedData"`
	Nonce         string `json:"nonce"`
}
