package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vaultguard/internal/client/client"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/dmitrijs2005/vaultguard/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaultguard/internal/client/ui"
	"github.com/dmitrijs2005/vaultguard/internal/cryptox"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
)

// RouteResolver turns the server's view of the session into a route.
type RouteResolver interface {
	Resolve(ctx context.Context) (ui.Route, error)
}

// SignupService drives account creation up to the master password setup.
// Routing always follows the state reported by the server; the locally
// stored route is only a hint for display.
type SignupService interface {
	RouteResolver
	Register(ctx context.Context, username, email string) (ui.Route, error)
	State(ctx context.Context) (models.SignupState, error)
	Hint(ctx context.Context) ui.Route
	SetupMasterPassword(ctx context.Context, password, confirm string) (ui.Route, error)
}

type signupService struct {
	client client.Client
	crypto cryptox.Boundary
	nav    ui.Navigator
	log    logging.Logger
	db     *sql.DB
}

func NewSignupService(c client.Client, crypto cryptox.Boundary, nav ui.Navigator, log logging.Logger, db *sql.DB) SignupService {
	return &signupService{client: c, crypto: crypto, nav: nav, log: log, db: db}
}

// RouteFor maps a signup state to the page that handles it.
func RouteFor(s models.SignupState) ui.Route {
	switch s {
	case models.StateUnverifiedOTP:
		return ui.RouteVerifyOTP
	case models.StateUnverifiedPassword:
		return ui.RouteVerifyPassword
	default:
		return ui.RouteLanding
	}
}

func (s *signupService) Register(ctx context.Context, username, email string) (ui.Route, error) {
	if err := ValidateSignup(username, email); err != nil {
		return "", err
	}
	if err := s.client.Signup(ctx, username, email); err != nil {
		return "", err
	}
	s.log.Info(ctx, "account created, awaiting verification")

	return s.resolve(ctx, map[string][]byte{metadata.KeyLastEmail: []byte(email)})
}

func (s *signupService) State(ctx context.Context) (models.SignupState, error) {
	sc, err := s.client.CheckSession(ctx)
	if err != nil {
		return "", err
	}
	return sc.SignupState(), nil
}

func (s *signupService) Resolve(ctx context.Context) (ui.Route, error) {
	return s.resolve(ctx, nil)
}

// resolve asks the server for the signup state, records the resulting route
// together with extra hints and navigates there.
func (s *signupService) resolve(ctx context.Context, extra map[string][]byte) (ui.Route, error) {
	state, err := s.State(ctx)
	if err != nil {
		return "", err
	}
	route := RouteFor(state)
	s.saveHints(ctx, route, extra)
	s.nav.Navigate(ctx, route)
	return route, nil
}

func (s *signupService) saveHints(ctx context.Context, route ui.Route, extra map[string][]byte) {
	if s.db == nil {
		return
	}

	kv := make(map[string][]byte, len(extra)+1)
	for k, v := range extra {
		kv[k] = v
	}
	if route != ui.RouteLanding {
		kv[metadata.KeySignupRoute] = []byte(route)
	}

	err := metadata.SetAll(ctx, s.db, kv)
	if err == nil && route == ui.RouteLanding {
		err = metadata.NewSQLiteRepository(s.db).Delete(ctx, metadata.KeySignupRoute)
	}
	if err != nil {
		s.log.Warn(ctx, "failed to save signup hints", "error", err)
	}
}

func (s *signupService) Hint(ctx context.Context) ui.Route {
	if s.db == nil {
		return ""
	}
	v, err := metadata.NewSQLiteRepository(s.db).Get(ctx, metadata.KeySignupRoute)
	if err != nil {
		s.log.Debug(ctx, "failed to read signup hint", "error", err)
		return ""
	}
	return ui.Route(v)
}

func (s *signupService) SetupMasterPassword(ctx context.Context, password, confirm string) (ui.Route, error) {
	if err := ValidateMasterPassword(password, confirm); err != nil {
		return "", err
	}

	id, err := s.crypto.DeriveIdentifier(password)
	if err != nil {
		return "", err
	}
	if err := s.client.SetupIdentifier(ctx, id); err != nil {
		return "", err
	}
	s.log.Info(ctx, "vault key created")
	return s.Resolve(ctx)
}
