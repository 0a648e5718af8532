// Package services contains the controllers of the vaultguard client: sign in
// and vault unlock, the signup funnel, OTP verification and vault items.
//
// Controllers are the only writers of the session store. They return
// *apperr.Error values; rendering them is up to the caller (see ui.ReportError).
package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/client/apperr"
	"github.com/dmitrijs2005/vaultguard/internal/client/client"
	"github.com/dmitrijs2005/vaultguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaultguard/internal/client/session"
	"github.com/dmitrijs2005/vaultguard/internal/client/ui"
	"github.com/dmitrijs2005/vaultguard/internal/cryptox"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/dmitrijs2005/vaultguard/internal/client/services"

// reportTimeout bounds the background report-failed call.
const reportTimeout = 10 * time.Second

// AuthService signs users in and out and guards access to the DEK.
//
// Contract:
//   - Login: identifier lookup, local unlock, server login. Every credential
//     failure surfaces as the same generic AuthError.
//   - UnlockVault: re-derive the DEK for the signed-in user.
//   - Logout: always ends with DEK, user and flags cleared.
//   - CheckAuth: never fails; false means the session is gone.
//   - UseDEK: the only way to read the DEK.
type AuthService interface {
	Login(ctx context.Context, email, password string) error
	UnlockVault(ctx context.Context, password string) error
	Logout(ctx context.Context, silent bool)
	CheckAuth(ctx context.Context) bool
	UseDEK() (string, error)
	Session() session.Reader
	// Close waits for background work such as failure reports.
	Close(ctx context.Context) error
}

type authService struct {
	client   client.Client
	crypto   cryptox.Boundary
	store    *session.Store
	nav      ui.Navigator
	notifier ui.Notifier
	log      logging.Logger
	db       *sql.DB

	bg sync.WaitGroup
}

// NewAuthService wires the controller and installs its silent logout as the
// client's session-lost hook. db may be nil, in which case no hints are kept.
func NewAuthService(c client.Client, crypto cryptox.Boundary, store *session.Store,
	nav ui.Navigator, n ui.Notifier, log logging.Logger, db *sql.DB) AuthService {
	a := &authService{
		client:   c,
		crypto:   crypto,
		store:    store,
		nav:      nav,
		notifier: n,
		log:      log,
		db:       db,
	}
	c.OnSessionLost(func(ctx context.Context) {
		a.log.Info(ctx, "session lost, logging out")
		a.Logout(ctx, true)
	})
	return a
}

func (a *authService) Session() session.Reader { return a.store }

// isServerSide reports failures that must not be masked as bad credentials.
func isServerSide(err error) bool {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Status >= 500 || (e.Kind == apperr.KindRequest && e.Status == 0)
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (a *authService) Login(ctx context.Context, email, password string) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "auth.login")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, "login failed")
		}
		span.End()
	}()

	a.store.SetLoading(true)
	defer a.store.SetLoading(false)

	id, err := a.client.GetIdentifier(ctx, email)
	if err != nil {
		if isServerSide(err) {
			return err
		}
		a.log.Info(ctx, "login rejected at identifier lookup", "error", err)
		return apperr.WrongCredentials(err)
	}
	if id == nil {
		a.log.Info(ctx, "login rejected: no identifier")
		return apperr.WrongCredentials(nil)
	}

	data, err := a.crypto.UnlockIdentifier(password, *id)
	if err != nil {
		a.log.Info(ctx, "login rejected at unlock")
		a.reportFailed(ctx, email)
		return apperr.WrongCredentials(err)
	}

	user, err := a.client.Login(ctx, email, data.AuthVerifier)
	if err != nil {
		if isServerSide(err) {
			return err
		}
		a.log.Info(ctx, "login rejected by server", "error", err)
		return apperr.WrongCredentials(err)
	}

	if err := a.store.Establish(user, data.DEK); err != nil {
		return apperr.NewCrypto("crypto module returned no key", err)
	}
	a.saveHint(ctx, metadata.KeyLastEmail, email)

	a.log.Info(ctx, "signed in", "user_id", user.ID)
	a.nav.Navigate(ctx, ui.RouteDashboard)
	return nil
}

func (a *authService) UnlockVault(ctx context.Context, password string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "auth.unlock")
	defer span.End()

	a.store.SetLoading(true)
	defer a.store.SetLoading(false)

	user, ok := a.store.User()
	if !ok || !a.store.IsAuthenticated() {
		return apperr.NewAuth("Not signed in", nil)
	}

	id, err := a.client.GetIdentifier(ctx, user.Email)
	if err != nil {
		return err
	}
	if id == nil {
		return apperr.NewAuth("Failed to get vault data", nil)
	}

	data, err := a.crypto.UnlockIdentifier(password, *id)
	if err != nil {
		a.reportFailed(ctx, user.Email)
		span.SetStatus(codes.Error, "unlock failed")
		return apperr.NewAuth("Unable to unlock vault", err)
	}

	if err := a.store.Unlock(data.DEK); err != nil {
		return apperr.NewCrypto("crypto module returned no key", err)
	}
	a.notifier.Success(ctx, "Vault unlocked successfully")
	return nil
}

// reportFailed tells the server about a failed unlock without delaying the
// caller. The report outlives ctx but not reportTimeout.
func (a *authService) reportFailed(ctx context.Context, email string) {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
		defer cancel()

		if err := a.client.ReportFailed(rctx, email); err != nil {
			a.log.Debug(rctx, "report-failed call returned error", "error", err)
		}
	}()
}

func (a *authService) Logout(ctx context.Context, silent bool) {
	defer func() {
		a.client.ClearSession()
		a.store.Clear()
		a.nav.Navigate(ctx, ui.RouteLanding)
	}()

	if err := a.client.Logout(ctx); err != nil {
		a.log.Warn(ctx, "server logout failed", "error", err)
		if !silent {
			a.notifier.Error(ctx, "Logout failed on server", apperr.From(err).Message)
		}
		return
	}
	if !silent {
		a.notifier.Success(ctx, "Successfully logged out")
	}
}

func (a *authService) CheckAuth(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error(ctx, "auth check panicked", "panic", r)
			a.store.Clear()
			ok = false
		}
	}()

	if a.store.IsAuthenticated() && a.store.HasDEK() {
		if _, hasUser := a.store.User(); hasUser {
			return true
		}
	}

	user, err := a.client.Me(ctx)
	if err != nil {
		a.log.Debug(ctx, "auth check failed", "error", err)
		a.store.Clear()
		return false
	}
	a.store.SetAuthenticated(user)
	return true
}

func (a *authService) UseDEK() (string, error) {
	dek, ok := a.store.DEK()
	if !ok {
		a.store.MarkLocked()
		return "", apperr.VaultLocked()
	}
	return dek, nil
}

func (a *authService) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.bg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *authService) saveHint(ctx context.Context, key, value string) {
	if a.db == nil {
		return
	}
	if err := metadata.NewSQLiteRepository(a.db).Set(ctx, key, []byte(value)); err != nil {
		a.log.Warn(ctx, "failed to save hint", "key", key, "error", err)
	}
}
