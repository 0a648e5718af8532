package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/client/apperr"
	"github.com/dmitrijs2005/vaultguard/internal/client/client"
	"github.com/dmitrijs2005/vaultguard/internal/client/countdown"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/dmitrijs2005/vaultguard/internal/client/ui"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
	"golang.org/x/sync/singleflight"
)

var ErrVerifyInProgress = errors.New("otp verification already in progress")

// OTPService follows the OTP of a signup session. The server's status is
// authoritative; expiry and the resend countdown are presentation only.
type OTPService interface {
	FetchStatus(ctx context.Context) (models.OTPStatus, error)
	// Status returns the last fetched status.
	Status() (models.OTPStatus, bool)
	// Resend reports whether a new code was requested. It is a no-op while
	// a resend is not allowed or already running.
	Resend(ctx context.Context) (bool, error)
	Verify(ctx context.Context, code string) (ui.Route, error)
	CanResend() bool
	Cooldown() int
	Expired() bool
	TimeUntilExpiry() time.Duration
	// Close stops the countdown and the status refresh it triggers.
	Close()
}

type otpService struct {
	client   client.Client
	resolver RouteResolver
	notifier ui.Notifier
	log      logging.Logger
	now      func() time.Time

	countdown *countdown.Countdown
	group     singleflight.Group

	// base scopes the status refresh run when a countdown ends.
	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	status    *models.OTPStatus
	resending bool
	verifying bool
}

type OTPOption func(*otpService)

// WithClock replaces time.Now for expiry computations.
func WithClock(now func() time.Time) OTPOption {
	return func(s *otpService) { s.now = now }
}

// WithTicker replaces the one-second ticker of the resend countdown.
func WithTicker(f countdown.TickerFunc) OTPOption {
	return func(s *otpService) {
		s.countdown = countdown.New(countdown.WithTicker(f), countdown.OnDone(s.onCountdownDone))
	}
}

func NewOTPService(c client.Client, resolver RouteResolver, n ui.Notifier, log logging.Logger, opts ...OTPOption) OTPService {
	base, cancel := context.WithCancel(context.Background())
	s := &otpService{
		client:   c,
		resolver: resolver,
		notifier: n,
		log:      log,
		now:      time.Now,
		base:     base,
		cancel:   cancel,
	}
	s.countdown = countdown.New(countdown.OnDone(s.onCountdownDone))
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *otpService) onCountdownDone() {
	if s.base.Err() != nil {
		return
	}
	if _, err := s.FetchStatus(s.base); err != nil {
		s.log.Warn(s.base, "otp status refresh failed", "error", err)
	}
}

func (s *otpService) FetchStatus(ctx context.Context) (models.OTPStatus, error) {
	// The shared call must not fail for every caller when the one that
	// started it goes away; each caller waits on its own ctx instead.
	ch := s.group.DoChan("status", func() (any, error) {
		return s.client.OTPStatus(context.WithoutCancel(ctx))
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return models.OTPStatus{}, ctx.Err()
	}
	if res.Err != nil {
		return models.OTPStatus{}, res.Err
	}
	st := res.Val.(models.OTPStatus)

	s.mu.Lock()
	s.status = &st
	s.mu.Unlock()

	if st.ResendAfter != nil && *st.ResendAfter > 0 {
		s.countdown.Start(*st.ResendAfter)
	}
	return st, nil
}

func (s *otpService) Status() (models.OTPStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return models.OTPStatus{}, false
	}
	return *s.status, true
}

func (s *otpService) canResendLocked() bool {
	return s.status != nil && s.status.CanResend && s.countdown.Remaining() == 0
}

func (s *otpService) CanResend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canResendLocked() && !s.resending
}

func (s *otpService) Cooldown() int {
	return s.countdown.Remaining()
}

func (s *otpService) Resend(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.resending || !s.canResendLocked() {
		s.mu.Unlock()
		return false, nil
	}
	s.resending = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.resending = false
		s.mu.Unlock()
	}()

	resp, err := s.client.ResendOTP(ctx)
	if err != nil {
		if wait := apperr.RetryAfter(err); wait > 0 {
			s.countdown.Start(int(math.Ceil(wait.Seconds())))
		}
		return false, err
	}

	s.notifier.Success(ctx, "OTP has been resent to your email!")
	if resp.CooldownSeconds > 0 {
		s.countdown.Start(resp.CooldownSeconds)
	}
	if _, err := s.FetchStatus(ctx); err != nil {
		s.log.Warn(ctx, "otp status refresh after resend failed", "error", err)
	}
	return true, nil
}

func (s *otpService) Verify(ctx context.Context, code string) (ui.Route, error) {
	if err := ValidateOTP(code); err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.verifying {
		s.mu.Unlock()
		return "", ErrVerifyInProgress
	}
	s.verifying = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.verifying = false
		s.mu.Unlock()
	}()

	if err := s.client.VerifyOTP(ctx, code); err != nil {
		return "", err
	}
	s.countdown.Stop()
	s.notifier.Success(ctx, "OTP verified successfully!")

	return s.resolver.Resolve(ctx)
}

func (s *otpService) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil || s.status.ExpiresAt == nil {
		return false
	}
	return s.status.ExpiresAt.Before(s.now())
}

func (s *otpService) TimeUntilExpiry() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil || s.status.ExpiresAt == nil {
		return 0
	}
	d := s.status.ExpiresAt.Sub(s.now()).Truncate(time.Second)
	if d < 0 {
		return 0
	}
	return d
}

func (s *otpService) Close() {
	s.cancel()
	s.countdown.Stop()
}
