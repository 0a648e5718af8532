// Package guard decides whether the client may enter a route. Guards consult
// the server on every call; local hints never decide a redirect.
package guard

import (
	"context"

	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/dmitrijs2005/vaultguard/internal/client/ui"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
)

// AuthChecker is satisfied by services.AuthService.
type AuthChecker interface {
	CheckAuth(ctx context.Context) bool
}

// StateSource is satisfied by services.SignupService.
type StateSource interface {
	State(ctx context.Context) (models.SignupState, error)
}

// Decision is the outcome of a guard. An empty Redirect lets navigation proceed.
type Decision struct {
	Redirect ui.Route
}

func (d Decision) Allowed() bool { return d.Redirect == "" }

var allow = Decision{}

type Guards struct {
	auth   AuthChecker
	signup StateSource
	route  func(models.SignupState) ui.Route
	log    logging.Logger
}

// New builds the guards. route maps a signup state to the page handling it.
func New(auth AuthChecker, signup StateSource, route func(models.SignupState) ui.Route, log logging.Logger) *Guards {
	return &Guards{auth: auth, signup: signup, route: route, log: log}
}

// Auth admits a valid session, including one whose vault is still locked.
func (g *Guards) Auth(ctx context.Context) Decision {
	if !g.auth.CheckAuth(ctx) {
		return Decision{Redirect: ui.RouteLanding}
	}
	return allow
}

// Guest keeps signed-in users away from the landing and signup pages.
func (g *Guards) Guest(ctx context.Context) Decision {
	if g.auth.CheckAuth(ctx) {
		return Decision{Redirect: ui.RouteDashboard}
	}
	return allow
}

// Signup admits target only when it is the page for the server's current
// signup state. Server errors are returned as is.
func (g *Guards) Signup(ctx context.Context, target ui.Route) (Decision, error) {
	state, err := g.signup.State(ctx)
	if err != nil {
		g.log.Debug(ctx, "signup state check failed", "target", string(target), "error", err)
		return Decision{}, err
	}

	want := g.route(state)
	if target.Path() != want.Path() {
		return Decision{Redirect: want}, nil
	}
	return allow, nil
}

// Enforce navigates to the redirect of d, if any, and reports whether the
// original route may be shown.
func Enforce(ctx context.Context, nav ui.Navigator, d Decision) bool {
	if d.Allowed() {
		return true
	}
	nav.Navigate(ctx, d.Redirect)
	return false
}
