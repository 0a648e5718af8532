package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/vaultguard/internal/client/client"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/dmitrijs2005/vaultguard/internal/cryptox"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
)

// DEKSource hands out the vault key, failing when the vault is locked.
type DEKSource interface {
	UseDEK() (string, error)
}

type VaultService interface {
	List(ctx context.Context) ([]models.DecryptedVault, error)
	Add(ctx context.Context, title string, item models.PasswordItem) error
	AddNote(ctx context.Context, title string, note models.NoteItem) error
}

type vaultService struct {
	client client.Client
	crypto cryptox.Boundary
	keys   DEKSource
	log    logging.Logger
}

func NewVaultService(c client.Client, crypto cryptox.Boundary, keys DEKSource, log logging.Logger) VaultService {
	return &vaultService{client: c, crypto: crypto, keys: keys, log: log}
}

// List fetches and decrypts every item. Items that fail to decrypt are
// skipped and logged.
func (s *vaultService) List(ctx context.Context) ([]models.DecryptedVault, error) {
	dek, err := s.keys.UseDEK()
	if err != nil {
		return nil, err
	}

	records, err := s.client.ListVault(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.DecryptedVault, 0, len(records))
	for _, r := range records {
		plaintext, err := s.crypto.DecryptItem(dek, models.CipherItem{EncryptedData: r.EncryptedData, Nonce: r.Nonce})
		if err != nil {
			s.log.Warn(ctx, "skipping undecryptable vault item", "id", r.ID, "error", err)
			continue
		}
		item, err := models.DecodeItem(r.ItemType, plaintext)
		if err != nil {
			s.log.Warn(ctx, "skipping malformed vault item", "id", r.ID, "error", err)
			continue
		}
		out = append(out, models.DecryptedVault{ID: r.ID, Title: r.Title, Item: item, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

func (s *vaultService) Add(ctx context.Context, title string, item models.PasswordItem) error {
	if err := ValidatePasswordItem(title, item); err != nil {
		return err
	}
	return s.add(ctx, title, item)
}

func (s *vaultService) AddNote(ctx context.Context, title string, note models.NoteItem) error {
	if err := ValidateNoteItem(title, note); err != nil {
		return err
	}
	return s.add(ctx, title, note)
}

func (s *vaultService) add(ctx context.Context, title string, item models.Item) error {
	dek, err := s.keys.UseDEK()
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	sealed, err := s.crypto.EncryptItem(dek, string(plaintext))
	if err != nil {
		return err
	}

	return s.client.CreateVaultItem(ctx, models.EncryptedVault{
		Title:         title,
		ItemType:      item.ItemType(),
		EncryptedData: sealed.EncryptedData,
		Nonce:         sealed.Nonce,
	})
}
