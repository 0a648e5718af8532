package devserver

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Mailer delivers verification codes.
type Mailer interface {
	SendOTP(ctx context.Context, email, username, code string) error
}

// WriterMailer prints each message to w. It is the dev server's stand-in for
// an SMTP relay.
type WriterMailer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterMailer(w io.Writer) *WriterMailer {
	return &WriterMailer{w: w}
}

func (m *WriterMailer) SendOTP(_ context.Context, email, username, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := fmt.Fprintf(m.w, "To: %s <%s>\nYour vaultguard verification code is %s\n\n", username, email, code)
	return err
}

// Outbox records sent codes in memory.
type Outbox struct {
	mu   sync.Mutex
	last map[string]string
	sent int
}

func NewOutbox() *Outbox {
	return &Outbox{last: map[string]string{}}
}

func (o *Outbox) SendOTP(_ context.Context, email, _, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last[normalizeEmail(email)] = code
	o.sent++
	return nil
}

// LastCode returns the most recent code sent to email.
func (o *Outbox) LastCode(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last[normalizeEmail(email)]
}

// Sent reports how many codes have been sent in total.
func (o *Outbox) Sent() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}
