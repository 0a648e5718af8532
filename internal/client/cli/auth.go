package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaultguard/internal/client/ui"
	"github.com/dmitrijs2005/vaultguard/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

// Signup asks for a username and an email and opens a signup session.
func (a *App) Signup(ctx context.Context) error {
	if !a.enter(ctx, a.guards.Guest(ctx)) {
		return nil
	}

	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	_, err = a.signup.Register(ctx, username, email)
	return err
}

// SetPassword creates the master password once the email is verified.
func (a *App) SetPassword(ctx context.Context) error {
	d, err := a.guards.Signup(ctx, ui.RouteVerifyPassword)
	if err != nil {
		return err
	}
	if !a.enter(ctx, d) {
		return nil
	}

	password, err := getPassword(a.reader, "Choose master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.reader, "Repeat master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	route, err := a.signup.SetupMasterPassword(ctx, string(password), string(confirm))
	if err != nil {
		return err
	}
	if route == ui.RouteLanding {
		fmt.Fprintln(a.out, "Account ready. Run 'login' to open your vault.")
	}
	return nil
}

// Login prompts for credentials, offering the last used email as default.
func (a *App) Login(ctx context.Context) error {
	if !a.enter(ctx, a.guards.Guest(ctx)) {
		return nil
	}

	last := a.lastEmail(ctx)
	prompt := "Enter email"
	if last != "" {
		prompt = fmt.Sprintf("Enter email [%s]", last)
	}
	email, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return err
	}
	if email == "" {
		email = last
	}

	password, err := getPassword(a.reader, "Master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	return a.auth.Login(ctx, email, string(password))
}

// Unlock re-derives the vault key for a session restored without one.
func (a *App) Unlock(ctx context.Context) error {
	if !a.enter(ctx, a.guards.Auth(ctx)) {
		return nil
	}
	if a.store.HasDEK() {
		fmt.Fprintln(a.out, "Vault is already unlocked.")
		return nil
	}

	password, err := getPassword(a.reader, "Master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	return a.auth.UnlockVault(ctx, string(password))
}

func (a *App) Logout(ctx context.Context) error {
	a.auth.Logout(ctx, false)
	return nil
}

// Status prints the session as the client currently sees it.
func (a *App) Status(ctx context.Context) error {
	snap := a.store.Snapshot()

	if snap.User == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		if hint := a.signup.Hint(ctx); hint != "" {
			fmt.Fprintf(a.out, "Signup in progress, last seen at %s.\n", hint)
		}
	} else {
		fmt.Fprintf(a.out, "Signed in as %s <%s>.\n", snap.User.Username, snap.User.Email)
		if snap.HasDEK {
			fmt.Fprintln(a.out, "Vault: unlocked")
		} else {
			fmt.Fprintln(a.out, "Vault: locked")
		}
	}
	if m := a.Mode(); m != "" {
		fmt.Fprintf(a.out, "API: %s (%s)\n", m, a.config.APIBaseURL)
	}
	return nil
}
