package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/dmitrijs2005/vaultguard/internal/common"
	units "github.com/docker/go-units"
)

// List prints every vault item. Passwords are never shown.
func (a *App) List(ctx context.Context) error {
	if !a.enter(ctx, a.guards.Auth(ctx)) {
		return nil
	}

	items, err := a.vault.List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Vault is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tTYPE\tDETAILS\tUPDATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Title, it.Item.ItemType(), describe(it.Item), age(it.UpdatedAt))
	}
	return tw.Flush()
}

func describe(item models.Item) string {
	switch v := item.(type) {
	case models.PasswordItem:
		return fmt.Sprintf("%s @ %s", v.UsernameOrEmail, v.WebsiteOrApp)
	case models.NoteItem:
		return units.HumanSize(float64(len(v.Text)))
	default:
		return ""
	}
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return units.HumanDuration(time.Since(t)) + " ago"
}

// AddLogin stores a new password entry.
func (a *App) AddLogin(ctx context.Context) error {
	if !a.enter(ctx, a.guards.Auth(ctx)) {
		return nil
	}

	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	user, err := getSimpleText(a.reader, "Username or email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	site, err := getSimpleText(a.reader, "Website or app", a.out)
	if err != nil {
		return err
	}

	item := models.PasswordItem{UsernameOrEmail: user, Password: string(password), WebsiteOrApp: site}
	if err := a.vault.Add(ctx, title, item); err != nil {
		return err
	}
	a.Success(ctx, "Item saved")
	return nil
}

// AddNote stores a new free-form note.
func (a *App) AddNote(ctx context.Context) error {
	if !a.enter(ctx, a.guards.Auth(ctx)) {
		return nil
	}

	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Note", a.out)
	if err != nil {
		return err
	}

	if err := a.vault.AddNote(ctx, title, models.NoteItem{Text: text}); err != nil {
		return err
	}
	a.Success(ctx, "Note saved")
	return nil
}
