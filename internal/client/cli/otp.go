package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/client/ui"
	units "github.com/docker/go-units"
)

func (a *App) enterOTP(ctx context.Context) (bool, error) {
	d, err := a.guards.Signup(ctx, ui.RouteVerifyOTP)
	if err != nil {
		return false, err
	}
	return a.enter(ctx, d), nil
}

// OTPStatus fetches and prints the state of the current code.
func (a *App) OTPStatus(ctx context.Context) error {
	ok, err := a.enterOTP(ctx)
	if err != nil || !ok {
		return err
	}

	st, err := a.otp.FetchStatus(ctx)
	if err != nil {
		return err
	}
	if !st.HasOTP {
		fmt.Fprintln(a.out, "No code has been issued. Run 'resend' to request one.")
	}
	a.printOTP()
	return nil
}

func (a *App) printOTP() {
	switch {
	case a.otp.Expired():
		fmt.Fprintln(a.out, "Code: expired")
	case a.otp.TimeUntilExpiry() > 0:
		fmt.Fprintf(a.out, "Code: expires in %s\n", units.HumanDuration(a.otp.TimeUntilExpiry()))
	}

	if a.otp.CanResend() {
		fmt.Fprintln(a.out, "Resend: available")
	} else if n := a.otp.Cooldown(); n > 0 {
		fmt.Fprintf(a.out, "Resend: in %s\n", units.HumanDuration(time.Duration(n)*time.Second))
	} else {
		fmt.Fprintln(a.out, "Resend: not allowed")
	}
}

// Resend asks for a new code when the cooldown allows it.
func (a *App) Resend(ctx context.Context) error {
	ok, err := a.enterOTP(ctx)
	if err != nil || !ok {
		return err
	}

	if _, known := a.otp.Status(); !known {
		if _, err := a.otp.FetchStatus(ctx); err != nil {
			return err
		}
	}

	sent, err := a.otp.Resend(ctx)
	if err != nil {
		return err
	}
	if !sent {
		a.printOTP()
	}
	return nil
}

// Verify submits the code given as argument or prompted for.
func (a *App) Verify(ctx context.Context, args []string) error {
	ok, err := a.enterOTP(ctx)
	if err != nil || !ok {
		return err
	}

	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		code, err = getSimpleText(a.reader, "Enter the 6-digit code", a.out)
		if err != nil {
			return err
		}
	}

	_, err = a.otp.Verify(ctx, code)
	return err
}
