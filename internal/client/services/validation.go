package services

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/vaultguard/internal/client/apperr"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
)

const otpLength = 6

// ValidateOTP accepts exactly six ASCII digits.
func ValidateOTP(code string) error {
	ok := len(code) == otpLength
	for i := 0; ok && i < len(code); i++ {
		ok = code[i] >= '0' && code[i] <= '9'
	}
	if !ok {
		return apperr.NewValidation("Invalid OTP code",
			apperr.FieldError{Field: "otpCode", Message: "OTP must be exactly 6 digits long."})
	}
	return nil
}

// ValidateSignup checks the account creation form.
func ValidateSignup(username, email string) error {
	var fields []apperr.FieldError

	switch n := utf8.RuneCountInString(username); {
	case n < 3:
		fields = append(fields, apperr.FieldError{Field: "username", Message: "Username must be at least 3 characters long."})
	case n > 100:
		fields = append(fields, apperr.FieldError{Field: "username", Message: "Username is too long"})
	}
	if !validEmail(email) {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "Invalid email address"})
	}

	if len(fields) > 0 {
		return apperr.NewValidation("Invalid signup data", fields...)
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}

const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

// ValidateMasterPassword applies the master password policy.
func ValidateMasterPassword(password, confirm string) error {
	var fields []apperr.FieldError
	add := func(msg string) {
		fields = append(fields, apperr.FieldError{Field: "password", Message: msg})
	}

	n := utf8.RuneCountInString(password)
	if n < 8 {
		add("Password must be at least 8 characters long.")
	}
	if n > 64 {
		add("Password must be at most 64 characters long.")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper {
		add("Password must contain at least one uppercase letter.")
	}
	if !lower {
		add("Password must contain at least one lowercase letter.")
	}
	if !digit {
		add("Password must contain at least one number.")
	}
	if !special {
		add("Password must contain at least one special character.")
	}
	if confirm != password {
		fields = append(fields, apperr.FieldError{Field: "confirmPassword", Message: "Passwords do not match."})
	}

	if len(fields) > 0 {
		return apperr.NewValidation("Invalid master password", fields...)
	}
	return nil
}

const (
	maxItemField = 64
	maxNoteText  = 10000
)

// itemChecks collects field errors of a vault item, starting with its title.
type itemChecks struct {
	fields []apperr.FieldError
}

func newItemChecks(title string) *itemChecks {
	c := &itemChecks{}
	if strings.TrimSpace(title) == "" {
		c.fields = append(c.fields, apperr.FieldError{Field: "title", Message: "Title is required"})
	}
	c.max("title", "Title", title, maxItemField)
	return c
}

func (c *itemChecks) max(field, label, v string, limit int) {
	if utf8.RuneCountInString(v) > limit {
		c.fields = append(c.fields, apperr.FieldError{
			Field:   field,
			Message: fmt.Sprintf("%s must be at most %d characters long", label, limit),
		})
	}
}

func (c *itemChecks) err() error {
	if len(c.fields) > 0 {
		return apperr.NewValidation("Invalid vault item", c.fields...)
	}
	return nil
}

// ValidateNoteItem checks a new secure note.
func ValidateNoteItem(title string, note models.NoteItem) error {
	c := newItemChecks(title)
	c.max("text", "Note", note.Text, maxNoteText)
	return c.err()
}

// ValidatePasswordItem checks a new password entry.
func ValidatePasswordItem(title string, item models.PasswordItem) error {
	c := newItemChecks(title)
	check := func(field, label, v string) { c.max(field, label, v, maxItemField) }

	check("usernameOrEmail", "Username or email", item.UsernameOrEmail)
	check("password", "Password", item.Password)
	check("websiteOrApp", "Website or app", item.WebsiteOrApp)
	return c.err()
}
