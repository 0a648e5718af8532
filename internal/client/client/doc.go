// Package client talks to the vaultguard API.
//
// HTTPClient implements the Client interface over REST with cookie-based
// sessions. Every request goes through a Pipeline, which attaches a request
// id and handles expired access tokens: the first request to get a 401 starts
// a single refresh, concurrent requests wait for it, and every one of them is
// replayed exactly once. When the refresh fails the session-lost hook runs
// and all waiting requests fail with apperr.ErrRefreshFailed.
//
// Failures are returned as *apperr.Error built from the API error envelope.
//
// The package also bootstraps the local SQLite database (InitDatabase,
// RunMigrations) used for non-secret client metadata.
package client
