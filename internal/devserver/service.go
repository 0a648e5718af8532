package devserver

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/vaultguard/internal/common"
	"github.com/dmitrijs2005/vaultguard/internal/devserver/auth"
	"github.com/dmitrijs2005/vaultguard/internal/devserver/config"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
	"github.com/google/uuid"
)

const signupSessionTTL = time.Hour

type tokenPair struct {
	AccessToken  string
	RefreshToken string
}

type userInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func infoOf(u *user) userInfo {
	return userInfo{ID: u.ID, Email: u.Email, Username: u.Username}
}

type otpStatus struct {
	HasOTP      bool       `json:"hasOtp"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	CanResend   bool       `json:"canResend"`
	ResendAfter *int       `json:"resendAfter"`
}

type resendResult struct {
	Success         bool `json:"success"`
	CooldownSeconds int  `json:"cooldownSeconds"`
}

// pendingMail is a code to deliver once the state lock is released.
type pendingMail struct {
	email, username, code string
}

// service implements the API semantics over the in-memory store.
type service struct {
	cfg    *config.Config
	secret []byte
	mailer Mailer
	log    logging.Logger
	now    func() time.Time

	mu sync.Mutex
	st *store
}

func newService(cfg *config.Config, mailer Mailer, log logging.Logger, now func() time.Time) *service {
	return &service{
		cfg:    cfg,
		secret: []byte(cfg.SecretKey),
		mailer: mailer,
		log:    log,
		now:    now,
		st:     newStore(),
	}
}

func (s *service) send(ctx context.Context, m *pendingMail) error {
	if m == nil {
		return nil
	}
	if err := s.mailer.SendOTP(ctx, m.email, m.username, m.code); err != nil {
		s.log.Error(ctx, "failed to send verification code", "error", err)
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// issueOTP replaces the user's code. Callers hold s.mu.
func (s *service) issueOTP(u *user) (*pendingMail, error) {
	code, err := generateOTP()
	if err != nil {
		return nil, err
	}
	s.st.otps[u.ID] = otpRecord{Code: code, ExpiresAt: s.now().Add(s.cfg.OTPTTL)}
	return &pendingMail{email: u.Email, username: u.Username, code: code}, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// signup creates or resumes the account for email and opens a signup
// session for it.
func (s *service) signup(ctx context.Context, username, email string) (string, error) {
	var v validator
	n := utf8.RuneCountInString(username)
	v.check(n >= 3, "username", "Username must be at least 3 characters long.")
	v.check(n <= 100, "username", "Username is too long")
	v.check(validEmail(email), "email", "Invalid email address")
	if err := v.err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	now := s.now()

	u, exists := s.st.userByEmail(email)
	if exists && u.Identifier != nil {
		s.mu.Unlock()
		return "", errConflict("Email is already registered")
	}
	if !exists {
		u = &user{ID: uuid.NewString(), Username: username, Email: email, CreatedAt: now}
		s.st.addUser(u)
	}

	state := stateVerifOTP
	var m *pendingMail
	if u.EmailVerified {
		state = stateVerifPassword
	} else {
		var err error
		if m, err = s.issueOTP(u); err != nil {
			s.mu.Unlock()
			return "", err
		}
	}

	sid, err := common.MakeRandHexString(32)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.st.sessions[sid] = &signupSession{ID: sid, UserID: u.ID, State: state, ExpiresAt: now.Add(signupSessionTTL)}
	s.mu.Unlock()

	s.log.Info(ctx, "signup session opened", "user_id", u.ID, "state", state)
	return sid, s.send(ctx, m)
}

// sessionState reports the signup state of sid, or "" when there is none.
func (s *service) sessionState(sid string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.st.session(sid, s.now()); ok {
		return sess.State
	}
	return ""
}

// requireState returns the session's user if the session is in state.
// Callers hold s.mu.
func (s *service) requireState(sid, state string) (*user, *signupSession, error) {
	sess, ok := s.st.session(sid, s.now())
	if !ok || sess.State != state {
		return nil, nil, errUnauthorized("Session not found or expired")
	}
	u, ok := s.st.users[sess.UserID]
	if !ok {
		return nil, nil, errUnauthorized("Session not found or expired")
	}
	return u, sess, nil
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func (s *service) otpStatus(sid string) (otpStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, _, err := s.requireState(sid, stateVerifOTP)
	if err != nil {
		return otpStatus{}, err
	}
	now := s.now()

	var st otpStatus
	if rec, ok := s.st.otps[u.ID]; ok {
		if rec.ExpiresAt.Before(now) {
			delete(s.st.otps, u.ID)
		} else {
			exp := rec.ExpiresAt
			st.HasOTP, st.ExpiresAt = true, &exp
		}
	}

	if until, ok := s.st.resendAfter[u.ID]; ok && until.After(now) {
		left := ceilSeconds(until.Sub(now))
		st.ResendAfter = &left
	} else {
		st.CanResend = true
	}
	return st, nil
}

func (s *service) resendOTP(ctx context.Context, sid string) (resendResult, error) {
	s.mu.Lock()
	u, _, err := s.requireState(sid, stateVerifOTP)
	if err != nil {
		s.mu.Unlock()
		return resendResult{}, err
	}
	now := s.now()
	if until, ok := s.st.resendAfter[u.ID]; ok && until.After(now) {
		s.mu.Unlock()
		return resendResult{}, errTooManyRequests("Please wait before requesting a new code", ceilSeconds(until.Sub(now)))
	}

	m, err := s.issueOTP(u)
	if err != nil {
		s.mu.Unlock()
		return resendResult{}, err
	}
	s.st.resendAfter[u.ID] = now.Add(s.cfg.OTPResendCooldown)
	s.mu.Unlock()

	if err := s.send(ctx, m); err != nil {
		return resendResult{}, err
	}
	return resendResult{Success: true, CooldownSeconds: ceilSeconds(s.cfg.OTPResendCooldown)}, nil
}

func validOTP(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// verifyOTP checks code and moves the session on to password setup.
func (s *service) verifyOTP(ctx context.Context, sid, code string) error {
	if !validOTP(code) {
		return errValidation(fieldError{Field: "otpCode", Message: "OTP must be exactly 6 digits long."})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, sess, err := s.requireState(sid, stateVerifOTP)
	if err != nil {
		return err
	}
	rec, ok := s.st.otps[u.ID]
	if !ok || rec.ExpiresAt.Before(s.now()) {
		delete(s.st.otps, u.ID)
		return errBadRequest("OTP has expired, request a new one")
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return errBadRequest("Invalid OTP code")
	}

	delete(s.st.otps, u.ID)
	delete(s.st.resendAfter, u.ID)
	u.EmailVerified = true
	sess.State = stateVerifPassword

	s.log.Info(ctx, "email verified", "user_id", u.ID)
	return nil
}

// setIdentifier stores the encrypted DEK bundle and closes the signup
// session. The user signs in afterwards with the new master password.
func (s *service) setIdentifier(ctx context.Context, sid string, id identifier) error {
	var v validator
	v.check(id.EncryptedDEK != "", "encryptedDek", "Encrypted key is required")
	v.check(id.Nonce != "", "nonce", "Nonce is required")
	v.check(id.Salt != "", "salt", "Salt is required")
	v.check(id.Argon2Params != "", "argon2Params", "Key derivation parameters are required")
	v.check(id.AuthVerifier != "", "authVerifier", "Auth verifier is required")
	if err := v.err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, sess, err := s.requireState(sid, stateVerifPassword)
	if err != nil {
		return err
	}
	u.Identifier = &id
	delete(s.st.sessions, sess.ID)

	s.log.Info(ctx, "identifier stored", "user_id", u.ID)
	return nil
}

// identifierFor returns the public part of the identifier of email, or nil.
func (s *service) identifierFor(email string) *identifier {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.st.userByEmail(email)
	if !ok || u.Identifier == nil {
		return nil
	}
	pub := *u.Identifier
	pub.AuthVerifier = ""
	return &pub
}

// lockedFor returns the remaining lockout of email. Callers hold s.mu.
func (s *service) lockedFor(email string) time.Duration {
	a, ok := s.st.attempts[normalizeEmail(email)]
	if !ok {
		return 0
	}
	return max(a.LockedUntil.Sub(s.now()), 0)
}

// recordFailure counts a failed login and reports whether it locked email.
// Callers hold s.mu.
func (s *service) recordFailure(email string) bool {
	key := normalizeEmail(email)
	a, ok := s.st.attempts[key]
	if !ok {
		a = &loginAttempts{}
		s.st.attempts[key] = a
	}
	a.Count++
	if a.Count >= s.cfg.MaxFailedLogins {
		a.Count = 0
		a.LockedUntil = s.now().Add(s.cfg.LockoutDuration)
		return true
	}
	return false
}

func (s *service) lockedError(left time.Duration) error {
	return errTooManyRequests("Too many failed attempts, try again later", ceilSeconds(left))
}

func (s *service) checkVerifier(verifier, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(verifier), []byte(candidate)) == 1
}

func (s *service) login(ctx context.Context, email, verifier string) (userInfo, *tokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if left := s.lockedFor(email); left > 0 {
		return userInfo{}, nil, s.lockedError(left)
	}

	u, ok := s.st.userByEmail(email)
	if !ok || u.Identifier == nil || !s.checkVerifier(u.Identifier.AuthVerifier, verifier) {
		s.recordFailure(email)
		s.log.Warn(ctx, "login rejected", "email", email)
		return userInfo{}, nil, errUnauthorized("Invalid email or password")
	}

	delete(s.st.attempts, normalizeEmail(email))
	pair, err := s.generateTokenPair(u.ID)
	if err != nil {
		return userInfo{}, nil, err
	}
	s.log.Info(ctx, "user logged in", "user_id", u.ID)
	return infoOf(u), pair, nil
}

// reportFailed records a failure the client detected while unlocking.
func (s *service) reportFailed(ctx context.Context, email string) error {
	if !validEmail(email) {
		return errValidation(fieldError{Field: "email", Message: "Invalid email address"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if left := s.lockedFor(email); left > 0 {
		return s.lockedError(left)
	}
	if s.recordFailure(email) {
		s.log.Warn(ctx, "email locked after failed attempts", "email", email)
		return s.lockedError(s.cfg.LockoutDuration)
	}
	return nil
}

// refresh rotates a refresh token: the old one is consumed and a new pair
// issued.
func (s *service) refresh(ctx context.Context, token string) (*tokenPair, error) {
	if token == "" {
		return nil, errUnauthorized("Missing refresh token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.st.refreshTokens[token]
	if !ok {
		return nil, errUnauthorized("Invalid refresh token")
	}
	delete(s.st.refreshTokens, token)
	if rt.Expires.Before(s.now()) {
		return nil, errUnauthorized("Refresh token expired")
	}
	if _, ok := s.st.users[rt.UserID]; !ok {
		return nil, errUnauthorized("Invalid refresh token")
	}

	s.log.Debug(ctx, "refresh token rotated", "user_id", rt.UserID)
	return s.generateTokenPair(rt.UserID)
}

func (s *service) logout(ctx context.Context, userID string) {
	s.mu.Lock()
	s.st.deleteRefreshTokensOf(userID)
	s.mu.Unlock()
	s.log.Info(ctx, "user logged out", "user_id", userID)
}

// userID resolves an access token to a known user.
func (s *service) userID(accessToken string) (string, error) {
	if accessToken == "" {
		return "", errUnauthorized("Missing access token")
	}
	id, err := auth.GetUserIDFromToken(accessToken, s.secret)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return "", errUnauthorized("Token expired")
		}
		return "", errUnauthorized("Invalid token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.users[id]; !ok {
		return "", errUnauthorized("Invalid token")
	}
	return id, nil
}

func (s *service) me(userID string) (userInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return userInfo{}, errNotFound("User not found")
	}
	return infoOf(u), nil
}

func (s *service) listVault(userID string) []vaultItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.vaultOf(userID)
}

type newVaultItem struct {
	Title         string `json:"title"`
	ItemType      string `json:"itemType"`
	EncryptedData string `json:"encryptedData"`
	Nonce         string `json:"nonce"`
}

func (s *service) createVaultItem(ctx context.Context, userID string, in newVaultItem) (vaultItem, error) {
	var v validator
	v.check(strings.TrimSpace(in.Title) != "", "title", "Title is required")
	v.check(in.ItemType == "password" || in.ItemType == "note", "itemType", "Unknown item type")
	v.check(in.EncryptedData != "", "encryptedData", "Encrypted data is required")
	v.check(in.Nonce != "", "nonce", "Nonce is required")
	if err := v.err(); err != nil {
		return vaultItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	item := vaultItem{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         in.Title,
		ItemType:      in.ItemType,
		EncryptedData: in.EncryptedData,
		Nonce:         in.Nonce,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.st.vault[userID] = append(s.st.vault[userID], item)

	s.log.Debug(ctx, "vault item created", "user_id", userID, "item_id", item.ID)
	return item, nil
}

// generateTokenPair issues an access token and a stored refresh token.
// Callers hold s.mu.
func (s *service) generateTokenPair(userID string) (*tokenPair, error) {
	access, err := auth.GenerateToken(userID, s.secret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	s.st.refreshTokens[refresh] = refreshToken{
		Token:   refresh,
		UserID:  userID,
		Expires: s.now().Add(s.cfg.RefreshTokenTTL),
	}
	return &tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
