package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/client/client"
	"github.com/dmitrijs2005/vaultguard/internal/client/countdown"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/dmitrijs2005/vaultguard/internal/client/ui"
	"github.com/dmitrijs2005/vaultguard/internal/cryptox"
	"github.com/stretchr/testify/require"
)

// ---- fake client ----

// fakeClient implements client.Client. Zero values succeed.
type fakeClient struct {
	mu sync.Mutex

	identifier    *models.Identifier
	identifierErr error

	loginUser models.UserInfo
	loginErr  error
	loginArgs []string

	me      models.UserInfo
	meErr   error
	mePanic bool
	meCalls int

	logoutErr   error
	logoutCalls int

	reports chan string

	otpStatus      models.OTPStatus
	otpStatusErr   error
	otpStatusCalls int
	otpStatusGate  chan struct{}

	resendResp  models.ResendOTPResponse
	resendErr   error
	resendCalls int

	verifyErr   error
	verifyCalls int

	check    models.SessionCheck
	checkErr error

	signupErr  error
	signupArgs []string
	setupErr   error
	setupIDs   []models.Identifier

	vault   []models.VaultRecord
	created []models.EncryptedVault

	onSessionLost func(ctx context.Context)
	clearCalls    int
}

var _ client.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{reports: make(chan string, 8)}
}

func (f *fakeClient) Close() error                 { return nil }
func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func (f *fakeClient) Signup(ctx context.Context, username, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signupArgs = []string{username, email}
	return f.signupErr
}

func (f *fakeClient) GetIdentifier(ctx context.Context, email string) (*models.Identifier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identifier, f.identifierErr
}

func (f *fakeClient) Login(ctx context.Context, email, authVerifier string) (models.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginArgs = []string{email, authVerifier}
	return f.loginUser, f.loginErr
}

func (f *fakeClient) SetupIdentifier(ctx context.Context, id models.Identifier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupIDs = append(f.setupIDs, id)
	return f.setupErr
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeClient) Refresh(ctx context.Context) error { return nil }

func (f *fakeClient) ReportFailed(ctx context.Context, email string) error {
	f.reports <- email
	return nil
}

func (f *fakeClient) Me(ctx context.Context) (models.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if f.mePanic {
		panic("boom")
	}
	return f.me, f.meErr
}

func (f *fakeClient) OTPStatus(ctx context.Context) (models.OTPStatus, error) {
	if f.otpStatusGate != nil {
		<-f.otpStatusGate
	}
	if err := ctx.Err(); err != nil {
		return models.OTPStatus{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpStatusCalls++
	return f.otpStatus, f.otpStatusErr
}

func (f *fakeClient) ResendOTP(ctx context.Context) (models.ResendOTPResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resendCalls++
	return f.resendResp, f.resendErr
}

func (f *fakeClient) VerifyOTP(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	return f.verifyErr
}

func (f *fakeClient) CheckSession(ctx context.Context) (models.SessionCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.check, f.checkErr
}

func (f *fakeClient) ListVault(ctx context.Context) ([]models.VaultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.VaultRecord(nil), f.vault...), nil
}

func (f *fakeClient) CreateVaultItem(ctx context.Context, item models.EncryptedVault) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, item)
	f.vault = append(f.vault, models.VaultRecord{
		ID:            "item-" + item.Title,
		Title:         item.Title,
		EncryptedData: item.EncryptedData,
		Nonce:         item.Nonce,
		ItemType:      item.ItemType,
	})
	return nil
}

func (f *fakeClient) OnSessionLost(fn func(ctx context.Context)) { f.onSessionLost = fn }

func (f *fakeClient) ClearSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
}

func (f *fakeClient) set(fn func(f *fakeClient)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// ---- ui fakes ----

type recordingNav struct {
	mu     sync.Mutex
	routes []ui.Route
}

func (r *recordingNav) Navigate(_ context.Context, to ui.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, to)
}

func (r *recordingNav) last() ui.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.routes) == 0 {
		return ""
	}
	return r.routes[len(r.routes)-1]
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (r *recordingNotifier) Success(_ context.Context, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *recordingNotifier) Error(_ context.Context, title string, _ ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, title)
}

// ---- crypto & storage helpers ----

var fastParams = cryptox.Params{Memory: 64, Time: 1, Threads: 1}

func newCrypto() *cryptox.Adapter {
	return cryptox.NewNativeAdapter(cryptox.WithParams(fastParams))
}

func identifierFor(t *testing.T, password string) *models.Identifier {
	t.Helper()
	id, err := newCrypto().DeriveIdentifier(password)
	require.NoError(t, err)
	return &id
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ---- countdown ticker ----

type manualTicker struct{ ch chan time.Time }

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

type manualTickers struct {
	mu  sync.Mutex
	all []*manualTicker
}

func (m *manualTickers) factory() countdown.TickerFunc {
	return func(time.Duration) countdown.Ticker {
		m.mu.Lock()
		defer m.mu.Unlock()
		t := &manualTicker{ch: make(chan time.Time)}
		m.all = append(m.all, t)
		return t
	}
}

func (m *manualTickers) latest() *manualTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.all[len(m.all)-1]
}

func (m *manualTickers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.all)
}
