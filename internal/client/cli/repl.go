package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App satisfies it;
// tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	OTPStatus(ctx context.Context) error
	Resend(ctx context.Context) error
	Verify(ctx context.Context, args []string) error
	SetPassword(ctx context.Context) error
	Login(ctx context.Context) error
	Unlock(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	List(ctx context.Context) error
	AddLogin(ctx context.Context) error
	AddNote(ctx context.Context) error
}

const (
	helpGuest    = "Available commands: signup, otp, resend, verify <code>, setpassword, login, status, exit"
	helpSignedIn = "Available commands: (l)ist, addlogin, addnote, unlock, logout, status, exit"
)

// runREPL reads one command per line from reader and dispatches it to a.
// Errors returned by commands go to report; the loop keeps going. It exits on
// EOF, on "exit"/"quit", or when ctx ends.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer, report func(context.Context, error)) {
	for ctx.Err() == nil {
		fmt.Fprintf(w, "vg %s> ", statusFn())
		line, err := readLine(reader)
		if err != nil {
			fmt.Fprintln(w)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, helpSignedIn)
			} else {
				fmt.Fprintln(w, helpGuest)
			}

		case "signup", "register":
			cmdErr = a.Signup(ctx)
		case "otp":
			cmdErr = a.OTPStatus(ctx)
		case "resend":
			cmdErr = a.Resend(ctx)
		case "verify":
			cmdErr = a.Verify(ctx, args)
		case "setpassword":
			cmdErr = a.SetPassword(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "unlock":
			cmdErr = a.Unlock(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "status":
			cmdErr = a.Status(ctx)
		case "l", "list":
			cmdErr = a.List(ctx)
		case "addlogin":
			cmdErr = a.AddLogin(ctx)
		case "addnote":
			cmdErr = a.AddNote(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			report(ctx, cmdErr)
		}
	}
}
