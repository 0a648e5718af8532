package models

import "time"

// SignupState is the server-confirmed position of a session in the signup funnel.
type SignupState string

const (
	StateUnverifiedOTP      SignupState = "unverified_otp"
	StateUnverifiedPassword SignupState = "unverified_password"
	StateAuthenticated      SignupState = "authenticated"
)

// Wire values reported by GET /session/check.
const (
	wireVerifOTP      = "verif_otp"
	wireVerifPassword = "verif_password"
)

// SessionCheck is the payload of GET /session/check.
type SessionCheck struct {
	State string `json:"state,omitempty"`
}

// SignupState maps the wire value; an absent state means the funnel is done.
func (c SessionCheck) SignupState() SignupState {
	switch c.State {
	case wireVerifOTP:
		return StateUnverifiedOTP
	case wireVerifPassword:
		return StateUnverifiedPassword
	default:
		return StateAuthenticated
	}
}

// WireState is the inverse of SessionCheck.SignupState.
func WireState(s SignupState) string {
	switch s {
	case StateUnverifiedOTP:
		return wireVerifOTP
	case StateUnverifiedPassword:
		return wireVerifPassword
	default:
		return ""
	}
}

// OTPStatus is the server-authoritative OTP state of a signup session.
type OTPStatus struct {
	HasOTP    bool       `json:"hasOtp"`
	ExpiresAt *time.Time `json:"expiresAt"`
	CanResend bool       `json:"canResend"`
	// ResendAfter is the number of seconds until a resend is allowed.
	ResendAfter *int `json:"resendAfter"`
}

type ResendOTPResponse struct {
	Success         bool `json:"success"`
	CooldownSeconds int  `json:"cooldownSeconds"`
}
