package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemType classifies a vault item.
type ItemType string

const (
	ItemTypePassword ItemType = "password"
	ItemTypeNote     ItemType = "note"
)

// VaultRecord is a vault item as stored by the server: ciphertext only.
type VaultRecord struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	EncryptedData string    `json:"encryptedData"`
	Nonce         string    `json:"nonce"`
	ItemType      ItemType  `json:"itemType"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// EncryptedVault is the create payload of POST /vault.
type EncryptedVault struct {
	Title         string   `json:"title"`
	ItemType      ItemType `json:"itemType"`
	EncryptedData string   `json:"encryptedData"`
	Nonce         string   `json:"nonce"`
}

// PasswordItem is the plaintext of a password entry.
type PasswordItem struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
	WebsiteOrApp    string `json:"websiteOrApp"`
}

func (PasswordItem) ItemType() ItemType { return ItemTypePassword }

// NoteItem is the plaintext of a free-form note.
type NoteItem struct {
	Text string `json:"text"`
}

func (NoteItem) ItemType() ItemType { return ItemTypeNote }

// Item is implemented by every plaintext vault payload.
type Item interface {
	ItemType() ItemType
}

// DecodeItem parses decrypted plaintext according to t.
func DecodeItem(t ItemType, plaintext string) (Item, error) {
	switch t {
	case ItemTypePassword:
		var v PasswordItem
		if err := json.Unmarshal([]byte(plaintext), &v); err != nil {
			return nil, fmt.Errorf("decode %s item: %w", t, err)
		}
		return v, nil
	case ItemTypeNote:
		var v NoteItem
		if err := json.Unmarshal([]byte(plaintext), &v); err != nil {
			return nil, fmt.Errorf("decode %s item: %w", t, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown item type %q", t)
	}
}

// DecryptedVault pairs a record's public fields with its decrypted payload.
type DecryptedVault struct {
	ID        string
	Title     string
	Item      Item
	UpdatedAt time.Time
}
