// Package ui is the boundary between the client core and whatever renders it.
// Controllers navigate and notify through these interfaces; the terminal
// client implements them.
package ui

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/vaultguard/internal/client/apperr"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
)

type Route string

const (
	RouteLanding        Route = "/"
	RouteDashboard      Route = "/dashboard"
	RouteVerifyOTP      Route = "/verification/otp"
	RouteVerifyPassword Route = "/verification/password"
	RouteInternalError  Route = "/internal-error"
)

const incidentRequestIDName = "requestId"

// Incident is the internal-error route keyed by the server request id.
func Incident(requestID string) Route {
	if requestID == "" {
		return RouteInternalError
	}
	q := url.Values{incidentRequestIDName: []string{requestID}}
	return Route(string(RouteInternalError) + "?" + q.Encode())
}

// Path strips the query part of r.
func (r Route) Path() string {
	p, _, _ := strings.Cut(string(r), "?")
	return p
}

// RequestID returns the request id carried by an incident route.
func (r Route) RequestID() string {
	_, q, ok := strings.Cut(string(r), "?")
	if !ok {
		return ""
	}
	v, err := url.ParseQuery(q)
	if err != nil {
		return ""
	}
	return v.Get(incidentRequestIDName)
}

type Navigator interface {
	Navigate(ctx context.Context, to Route)
}

type Notifier interface {
	Success(ctx context.Context, msg string)
	Error(ctx context.Context, title string, details ...string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, to Route)

func (f NavigatorFunc) Navigate(ctx context.Context, to Route) { f(ctx, to) }

type nopNotifier struct{}

func (nopNotifier) Success(context.Context, string)          {}
func (nopNotifier) Error(context.Context, string, ...string) {}

// Silent discards all notifications.
var Silent Notifier = nopNotifier{}

// ReportError routes err to the user: server failures go to the incident
// view, request failures become a notification with the field messages, and
// anything else is only logged.
func ReportError(ctx context.Context, err error, nav Navigator, n Notifier, log logging.Logger) {
	if err == nil {
		return
	}
	e := apperr.From(err)

	switch {
	case e.Status >= 500:
		log.Error(ctx, "server error", "status", e.Status, "request_id", e.RequestID, "error", err)
		nav.Navigate(ctx, Incident(e.RequestID))
	case e.Status >= 400:
		n.Error(ctx, e.Message, e.FieldMessages()...)
	case errors.Is(err, context.Canceled):
		log.Debug(ctx, "operation cancelled", "error", err)
	default:
		log.Error(ctx, "unexpected error", "error", err)
		n.Error(ctx, "Unexpected error")
	}
}
