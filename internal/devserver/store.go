package devserver

import (
	"sort"
	"strings"
	"time"
)

// signup states as reported by GET /session/check.
const (
	stateVerifOTP      = "verif_otp"
	stateVerifPassword = "verif_password"
)

type user struct {
	ID            string
	Username      string
	Email         string
	EmailVerified bool
	Identifier    *identifier
	CreatedAt     time.Time
}

// identifier is the encrypted DEK bundle plus the login verifier. The server
// only ever compares the verifier.
type identifier struct {
	EncryptedDEK string `json:"encryptedDek"`
	Nonce        string `json:"nonce"`
	Salt         string `json:"salt"`
	Argon2Params string `json:"argon2Params"`
	AuthVerifier string `json:"authVerifier,omitempty"`
}

type signupSession struct {
	ID        string
	UserID    string
	State     string
	ExpiresAt time.Time
}

type otpRecord struct {
	Code      string
	ExpiresAt time.Time
}

type refreshToken struct {
	Token   string
	UserID  string
	Expires time.Time
}

type vaultItem struct {
	ID            string    `json:"id"`
	UserID        string    `json:"-"`
	Title         string    `json:"title"`
	ItemType      string    `json:"itemType"`
	EncryptedData string    `json:"encryptedData"`
	Nonce         string    `json:"nonce"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type loginAttempts struct {
	Count       int
	LockedUntil time.Time
}

// store keeps all dev server state in memory. It does no locking; the
// service owning it serialises access.
type store struct {
	users         map[string]*user
	usersByEmail  map[string]string
	sessions      map[string]*signupSession
	otps          map[string]otpRecord // by user id
	resendAfter   map[string]time.Time // by user id
	refreshTokens map[string]refreshToken
	vault         map[string][]vaultItem // by user id
	attempts      map[string]*loginAttempts
}

func newStore() *store {
	return &store{
		users:         map[string]*user{},
		usersByEmail:  map[string]string{},
		sessions:      map[string]*signupSession{},
		otps:          map[string]otpRecord{},
		resendAfter:   map[string]time.Time{},
		refreshTokens: map[string]refreshToken{},
		vault:         map[string][]vaultItem{},
		attempts:      map[string]*loginAttempts{},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *store) addUser(u *user) {
	s.users[u.ID] = u
	s.usersByEmail[normalizeEmail(u.Email)] = u.ID
}

func (s *store) userByEmail(email string) (*user, bool) {
	id, ok := s.usersByEmail[normalizeEmail(email)]
	if !ok {
		return nil, false
	}
	u, ok := s.users[id]
	return u, ok
}

// session returns a live signup session; expired ones are dropped.
func (s *store) session(id string, now time.Time) (*signupSession, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if now.After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	return sess, true
}

func (s *store) deleteRefreshTokensOf(userID string) {
	for tok, rt := range s.refreshTokens {
		if rt.UserID == userID {
			delete(s.refreshTokens, tok)
		}
	}
}

func (s *store) vaultOf(userID string) []vaultItem {
	items := append([]vaultItem(nil), s.vault[userID]...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}
