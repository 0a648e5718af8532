package services

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/client/apperr"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/dmitrijs2005/vaultguard/internal/client/ui"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	route ui.Route
	calls int
}

func (s *stubResolver) Resolve(context.Context) (ui.Route, error) {
	s.calls++
	return s.route, nil
}

func intp(v int) *int { return &v }

type otpFixture struct {
	client   *fakeClient
	resolver *stubResolver
	notifier *recordingNotifier
	tickers  *manualTickers
	svc      OTPService
}

func newOTPFixture(t *testing.T, opts ...OTPOption) *otpFixture {
	t.Helper()
	f := &otpFixture{
		client:   newFakeClient(),
		resolver: &stubResolver{route: ui.RouteVerifyPassword},
		notifier: &recordingNotifier{},
		tickers:  &manualTickers{},
	}
	opts = append([]OTPOption{WithTicker(f.tickers.factory())}, opts...)
	f.svc = NewOTPService(f.client, f.resolver, f.notifier, logging.Discard(), opts...)
	t.Cleanup(f.svc.Close)
	return f
}

func TestValidateOTP(t *testing.T) {
	tests := []struct {
		code string
		ok   bool
	}{
		{"123456", true},
		{"000000", true},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{"", false},
		{"١٢٣٤٥٦", false},
		{" 12345", false},
	}
	for _, tt := range tests {
		err := ValidateOTP(tt.code)
		if tt.ok {
			assert.NoError(t, err, tt.code)
			continue
		}
		var e *apperr.Error
		if assert.ErrorAs(t, err, &e, tt.code) {
			assert.Equal(t, []string{"OTP must be exactly 6 digits long."}, e.FieldMessages())
			assert.Equal(t, "otpCode", e.FieldErrors[0].Field)
		}
	}
}

func TestVerify_InvalidCodeNeverReachesServer(t *testing.T) {
	f := newOTPFixture(t)

	for _, code := range []string{"12345", "1234567", "12a456", ""} {
		_, err := f.svc.Verify(context.Background(), code)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
	assert.Zero(t, f.client.verifyCalls)
	assert.Zero(t, f.resolver.calls)
}

func TestVerify_ResolvesNextRoute(t *testing.T) {
	f := newOTPFixture(t)
	f.client.otpStatus = models.OTPStatus{HasOTP: true, ResendAfter: intp(30)}
	_, err := f.svc.FetchStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30, f.svc.Cooldown())

	route, err := f.svc.Verify(context.Background(), "123456")
	require.NoError(t, err)

	assert.Equal(t, ui.RouteVerifyPassword, route)
	assert.Equal(t, 1, f.client.verifyCalls)
	assert.Equal(t, 1, f.resolver.calls)
	assert.Equal(t, []string{"OTP verified successfully!"}, f.notifier.successes)
	assert.Zero(t, f.svc.Cooldown(), "countdown stops after verification")
}

func TestVerify_ServerRejection(t *testing.T) {
	f := newOTPFixture(t)
	f.client.verifyErr = apperr.FromResponse(http.StatusBadRequest, []byte(`{"error":{"message":"Invalid OTP"}}`))

	_, err := f.svc.Verify(context.Background(), "654321")
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Invalid OTP", e.Message)
	assert.Zero(t, f.resolver.calls)
	assert.Empty(t, f.notifier.successes)
}

func TestFetchStatus_StartsCountdownOnlyWhenPositive(t *testing.T) {
	tests := []struct {
		name        string
		resendAfter *int
		wantRunning bool
	}{
		{"null", nil, false},
		{"zero", intp(0), false},
		{"positive", intp(45), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOTPFixture(t)
			f.client.otpStatus = models.OTPStatus{HasOTP: true, CanResend: !tt.wantRunning, ResendAfter: tt.resendAfter}

			st, err := f.svc.FetchStatus(context.Background())
			require.NoError(t, err)
			assert.Equal(t, f.client.otpStatus, st)

			got, ok := f.svc.Status()
			require.True(t, ok)
			assert.Equal(t, st, got)

			if tt.wantRunning {
				assert.Equal(t, *tt.resendAfter, f.svc.Cooldown())
				assert.Equal(t, 1, f.tickers.count())
				assert.False(t, f.svc.CanResend())
			} else {
				assert.Zero(t, f.svc.Cooldown())
				assert.Zero(t, f.tickers.count())
				assert.True(t, f.svc.CanResend())
			}
		})
	}
}

func TestResend_NoopWhenNotAllowed(t *testing.T) {
	f := newOTPFixture(t)

	// No status yet.
	sent, err := f.svc.Resend(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)

	// Server says no.
	f.client.otpStatus = models.OTPStatus{HasOTP: true, CanResend: false}
	_, err = f.svc.FetchStatus(context.Background())
	require.NoError(t, err)
	sent, err = f.svc.Resend(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)

	// Countdown running.
	f.client.otpStatus = models.OTPStatus{HasOTP: true, CanResend: true, ResendAfter: intp(10)}
	_, err = f.svc.FetchStatus(context.Background())
	require.NoError(t, err)
	sent, err = f.svc.Resend(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)

	assert.Zero(t, f.client.resendCalls)
}

func TestResend_SuccessStartsCooldownAndRefetches(t *testing.T) {
	f := newOTPFixture(t)
	f.client.otpStatus = models.OTPStatus{HasOTP: true, CanResend: true}
	_, err := f.svc.FetchStatus(context.Background())
	require.NoError(t, err)

	f.client.set(func(c *fakeClient) {
		c.resendResp = models.ResendOTPResponse{Success: true, CooldownSeconds: 60}
		c.otpStatus = models.OTPStatus{HasOTP: true, CanResend: false}
	})

	sent, err := f.svc.Resend(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)

	assert.Equal(t, []string{"OTP has been resent to your email!"}, f.notifier.successes)
	assert.Equal(t, 60, f.svc.Cooldown())
	assert.False(t, f.svc.CanResend())
	assert.Equal(t, 2, f.client.otpStatusCalls)
	assert.Equal(t, 1, f.client.resendCalls)
}

func TestResend_RateLimitedUsesRetryAfter(t *testing.T) {
	f := newOTPFixture(t)
	f.client.otpStatus = models.OTPStatus{HasOTP: true, CanResend: true}
	_, err := f.svc.FetchStatus(context.Background())
	require.NoError(t, err)

	f.client.resendErr = apperr.FromResponse(http.StatusTooManyRequests,
		[]byte(`{"error":{"message":"Too many requests","details":{"retry_after":42}}}`))

	sent, err := f.svc.Resend(context.Background())
	assert.False(t, sent)
	assert.ErrorIs(t, err, apperr.ErrRateLimited)
	assert.Equal(t, 42, f.svc.Cooldown())
	assert.Empty(t, f.notifier.successes)
}

func TestResend_SubSecondRetryAfterRoundsUp(t *testing.T) {
	f := newOTPFixture(t)
	f.client.otpStatus = models.OTPStatus{HasOTP: true, CanResend: true}
	_, err := f.svc.FetchStatus(context.Background())
	require.NoError(t, err)

	rl := apperr.FromResponse(http.StatusTooManyRequests, []byte(`{"error":{"message":"Too many requests"}}`))
	rl.RetryAfter = 300 * time.Millisecond
	f.client.resendErr = rl

	sent, err := f.svc.Resend(context.Background())
	assert.False(t, sent)
	assert.ErrorIs(t, err, apperr.ErrRateLimited)
	assert.Equal(t, 1, f.svc.Cooldown())
	assert.False(t, f.svc.CanResend())

	sent, err = f.svc.Resend(context.Background())
	assert.False(t, sent)
	assert.NoError(t, err)
	f.client.set(func(c *fakeClient) { assert.Equal(t, 1, c.resendCalls) })
}

func TestCountdownEndRefetchesStatus(t *testing.T) {
	f := newOTPFixture(t)
	f.client.otpStatus = models.OTPStatus{HasOTP: true, CanResend: false, ResendAfter: intp(2)}
	_, err := f.svc.FetchStatus(context.Background())
	require.NoError(t, err)

	f.client.set(func(c *fakeClient) {
		c.otpStatus = models.OTPStatus{HasOTP: true, CanResend: true}
	})

	tick := f.tickers.latest()
	tick.ch <- time.Now()
	require.Eventually(t, func() bool { return f.svc.Cooldown() == 1 }, time.Second, time.Millisecond)
	assert.False(t, f.svc.CanResend())
	tick.ch <- time.Now()

	require.Eventually(t, func() bool { return f.svc.CanResend() }, 2*time.Second, 5*time.Millisecond)
	f.client.set(func(c *fakeClient) { assert.Equal(t, 2, c.otpStatusCalls) })
}

func TestCloseStopsCountdown(t *testing.T) {
	f := newOTPFixture(t)
	f.client.otpStatus = models.OTPStatus{HasOTP: true, ResendAfter: intp(5)}
	_, err := f.svc.FetchStatus(context.Background())
	require.NoError(t, err)

	f.svc.Close()
	assert.Zero(t, f.svc.Cooldown())

	// A late tick from the stopped run changes nothing.
	select {
	case f.tickers.latest().ch <- time.Now():
	case <-time.After(20 * time.Millisecond):
	}
	assert.Zero(t, f.svc.Cooldown())
	assert.Equal(t, 1, f.client.otpStatusCalls)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	f := newOTPFixture(t, WithClock(clock))
	assert.False(t, f.svc.Expired())
	assert.Zero(t, f.svc.TimeUntilExpiry())

	expires := now.Add(90*time.Second + 400*time.Millisecond)
	f.client.otpStatus = models.OTPStatus{HasOTP: true, ExpiresAt: &expires}
	_, err := f.svc.FetchStatus(context.Background())
	require.NoError(t, err)

	assert.False(t, f.svc.Expired())
	assert.Equal(t, 90*time.Second, f.svc.TimeUntilExpiry())

	now = now.Add(2 * time.Minute)
	assert.True(t, f.svc.Expired())
	assert.Zero(t, f.svc.TimeUntilExpiry())
}

func TestFetchStatus_ConcurrentCallsShareOneRequest(t *testing.T) {
	f := newOTPFixture(t)
	f.client.otpStatusGate = make(chan struct{})
	f.client.otpStatus = models.OTPStatus{HasOTP: true, CanResend: true}

	const n = 5
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	wg.Add(n)
	started.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			started.Done()
			_, err := f.svc.FetchStatus(context.Background())
			assert.NoError(t, err)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(f.client.otpStatusGate)
	wg.Wait()

	assert.Less(t, f.client.otpStatusCalls, n)
	assert.GreaterOrEqual(t, f.client.otpStatusCalls, 1)
}

func TestFetchStatus_JoinedCallerSurvivesLeaderCancel(t *testing.T) {
	f := newOTPFixture(t)
	f.client.otpStatusGate = make(chan struct{})
	f.client.otpStatus = models.OTPStatus{HasOTP: true, CanResend: true}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = f.svc.FetchStatus(leaderCtx)
	}()
	time.Sleep(20 * time.Millisecond)

	type result struct {
		st  models.OTPStatus
		err error
	}
	joined := make(chan result, 1)
	go func() {
		st, err := f.svc.FetchStatus(context.Background())
		joined <- result{st, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(f.client.otpStatusGate)

	r := <-joined
	require.NoError(t, r.err)
	assert.True(t, r.st.CanResend)
	<-leaderDone
}
