package client

import (
	"context"

	"github.com/dmitrijs2005/vaultguard/internal/client/models"
)

// Client is the remote API as seen by the controllers. Session tokens travel
// as cookies and are never exposed.
type Client interface {
	Close() error
	Ping(ctx context.Context) error

	Signup(ctx context.Context, username, email string) error
	// GetIdentifier returns nil when the server has no identifier to give.
	GetIdentifier(ctx context.Context, email string) (*models.Identifier, error)
	Login(ctx context.Context, email, authVerifier string) (models.UserInfo, error)
	SetupIdentifier(ctx context.Context, id models.Identifier) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	ReportFailed(ctx context.Context, email string) error
	Me(ctx context.Context) (models.UserInfo, error)

	OTPStatus(ctx context.Context) (models.OTPStatus, error)
	ResendOTP(ctx context.Context) (models.ResendOTPResponse, error)
	VerifyOTP(ctx context.Context, code string) error
	CheckSession(ctx context.Context) (models.SessionCheck, error)

	ListVault(ctx context.Context) ([]models.VaultRecord, error)
	CreateVaultItem(ctx context.Context, item models.EncryptedVault) error

	// ClearSession drops the locally held session credentials, whatever
	// the server answered to a logout.
	ClearSession()

	// OnSessionLost sets the hook run when a refresh fails.
	OnSessionLost(fn func(ctx context.Context))
}
