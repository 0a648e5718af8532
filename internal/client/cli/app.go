package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/client/client"
	"github.com/dmitrijs2005/vaultguard/internal/client/config"
	"github.com/dmitrijs2005/vaultguard/internal/client/guard"
	"github.com/dmitrijs2005/vaultguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaultguard/internal/client/services"
	"github.com/dmitrijs2005/vaultguard/internal/client/session"
	"github.com/dmitrijs2005/vaultguard/internal/client/ui"
	"github.com/dmitrijs2005/vaultguard/internal/cryptox"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// App is the terminal front end. It renders navigation and notifications
// for the controllers and owns every resource they use.
type App struct {
	config *config.Config
	log    logging.Logger
	db     *sql.DB
	api    client.Client

	store  *session.Store
	auth   services.AuthService
	signup services.SignupService
	otp    services.OTPService
	vault  services.VaultService
	guards *guard.Guards

	reader *bufio.Reader
	out    io.Writer

	mu    sync.Mutex
	route ui.Route
	mode  Mode
}

var (
	_ ui.Navigator = (*App)(nil)
	_ ui.Notifier  = (*App)(nil)
)

// NewApp opens the local database and connects the controllers to the API
// named in c.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	api, err := client.NewHTTPClient(c.APIBaseURL, c.RequestTimeout, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return newApp(c, log, db, api, cryptox.NewNativeAdapter(), in, out), nil
}

func newApp(c *config.Config, log logging.Logger, db *sql.DB, api client.Client,
	crypto cryptox.Boundary, in io.Reader, out io.Writer) *App {
	a := &App{
		config: c,
		log:    log,
		db:     db,
		api:    api,
		store:  session.NewStore(),
		reader: bufio.NewReader(in),
		out:    out,
		route:  ui.RouteLanding,
	}

	a.auth = services.NewAuthService(api, crypto, a.store, a, a, log, db)
	a.signup = services.NewSignupService(api, crypto, a, log, db)
	a.otp = services.NewOTPService(api, a.signup, a, log)
	a.vault = services.NewVaultService(api, crypto, a.auth, log)
	a.guards = guard.New(a.auth, a.signup, services.RouteFor, log)
	return a
}

// Navigate records the current route and tells the user where they are.
func (a *App) Navigate(_ context.Context, to ui.Route) {
	a.mu.Lock()
	a.route = to
	a.mu.Unlock()

	if to.Path() == string(ui.RouteInternalError) {
		fmt.Fprintf(a.out, "Something went wrong on the server. Request id: %s\n", to.RequestID())
		return
	}
	if hint, ok := routeHints[to]; ok {
		fmt.Fprintln(a.out, hint)
	}
}

var routeHints = map[ui.Route]string{
	ui.RouteLanding:        "Not signed in. Run 'login' or 'signup'.",
	ui.RouteDashboard:      "Vault ready. Try 'list', 'addlogin' or 'addnote'.",
	ui.RouteVerifyOTP:      "Check your email for a 6-digit code, then run 'verify <code>'.",
	ui.RouteVerifyPassword: "Email verified. Run 'setpassword' to create your master password.",
}

func (a *App) Route() ui.Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.route
}

func (a *App) Success(_ context.Context, msg string) {
	fmt.Fprintln(a.out, "OK:", msg)
}

func (a *App) Error(_ context.Context, title string, details ...string) {
	fmt.Fprintln(a.out, "Error:", title)
	for _, d := range details {
		fmt.Fprintln(a.out, "  -", d)
	}
}

// report renders a command failure.
func (a *App) report(ctx context.Context, err error) {
	ui.ReportError(ctx, err, a, a, a.log)
}

// enter applies a guard decision and reports whether the command may run.
func (a *App) enter(ctx context.Context, d guard.Decision) bool {
	return guard.Enforce(ctx, a, d)
}

func (a *App) isLoggedIn() bool {
	return a.store.IsAuthenticated()
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(ctx, "connectivity changed", "mode", string(mode))
	}
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// StartOnlineStatusWatcher probes the API every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.api.Ping(pctx); err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)
}

func (a *App) lastEmail(ctx context.Context) string {
	v, err := metadata.NewSQLiteRepository(a.db).Get(ctx, metadata.KeyLastEmail)
	if err != nil {
		a.log.Debug(ctx, "failed to read last email", "error", err)
		return ""
	}
	return string(v)
}

// Close waits for background work and releases the API client and database.
func (a *App) Close(ctx context.Context) error {
	a.otp.Close()
	if err := a.auth.Close(ctx); err != nil {
		a.log.Warn(ctx, "background work did not finish", "error", err)
	}
	if err := a.api.Close(); err != nil {
		a.log.Warn(ctx, "failed to close api client", "error", err)
	}
	return a.db.Close()
}

// Run resumes any session, starts the connectivity watcher and serves the
// REPL until the user exits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = a.Close(cctx)
	}()

	fmt.Fprintln(a.out, "Welcome to vaultguard (type 'help' for commands)")
	a.probe(ctx)
	a.resume(ctx)

	wctx, stop := context.WithCancel(ctx)
	defer stop()
	go a.StartOnlineStatusWatcher(wctx, a.config.HealthCheckInterval)

	runREPL(ctx, a, a.status, a.reader, a.out, a.report)
	return nil
}

// resume restores a server session left by a previous run. A pending signup
// is only mentioned; the server decides where it continues.
func (a *App) resume(ctx context.Context) {
	if a.auth.CheckAuth(ctx) {
		if u, ok := a.store.User(); ok {
			fmt.Fprintf(a.out, "Signed in as %s. Run 'unlock' to open the vault.\n", u.Email)
		}
		return
	}
	if hint := a.signup.Hint(ctx); hint != "" {
		fmt.Fprintf(a.out, "A signup is in progress (%s). Run 'otp' or 'setpassword' to continue.\n", hint)
	}
}

func (a *App) status() string {
	snap := a.store.Snapshot()

	s := ""
	if snap.User != nil {
		s = snap.User.Username
		if snap.Flags.NeedsUnlock {
			s += " locked"
		}
	}
	if m := a.Mode(); m != "" {
		if s != "" {
			s += " "
		}
		s += string(m)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}
