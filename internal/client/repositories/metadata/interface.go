// Package metadata stores small non-secret client hints in the local
// database: the last signup route, the last email used to sign in.
//
// Secrets never go here. Set refuses keys that look like key material or
// credentials, so a DEK cannot end up on disk by accident.
package metadata

import (
	"context"
	"errors"
	"strings"
)

// Keys used by the client.
const (
	KeySignupRoute = "signup_route"
	KeyLastEmail   = "last_email"
)

var ErrSecretKey = errors.New("refusing to persist secret material")

// deniedFragments are matched against lower-cased keys.
var deniedFragments = []string{"dek", "password", "verifier", "token", "secret", "otp", "key"}

// IsSecretKey reports whether key names secret material.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, f := range deniedFragments {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
