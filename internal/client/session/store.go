// Package session holds the volatile state of one signed-in client session:
// the user, the auth flags and the vault DEK.
//
// A Store is constructed explicitly and handed to the components that need
// it. The Auth controller is its only writer; everything else reads through
// the Reader interface. The DEK lives in a memguard enclave for as long as the
// process runs and is never written anywhere else.
package session

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
)

var ErrEmptyDEK = errors.New("empty dek")

// Flags are the derived booleans tracked next to the user. NeedsUnlock
// implies IsAuthenticated.
type Flags struct {
	IsAuthenticated bool
	IsLoading       bool
	NeedsUnlock     bool
}

// Snapshot is a consistent copy of the store at one point in time.
type Snapshot struct {
	User   *models.UserInfo
	Flags  Flags
	HasDEK bool
}

// Reader is the read-only view used by guards and the UI.
type Reader interface {
	Snapshot() Snapshot
	User() (models.UserInfo, bool)
	IsAuthenticated() bool
	NeedsUnlock() bool
	HasDEK() bool
}

type Store struct {
	mu    sync.RWMutex
	user  *models.UserInfo
	flags Flags
	dek   *memguard.Enclave

	subsMu sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

var _ Reader = (*Store)(nil)

func NewStore() *Store {
	return &Store{subs: make(map[int]func(Snapshot))}
}

// Subscribe registers fn to be called with a fresh snapshot after every
// change. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify() {
	snap := s.Snapshot()

	s.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// update runs fn under the write lock, re-establishes the flag invariant and
// notifies subscribers.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	if !s.flags.IsAuthenticated {
		s.flags.NeedsUnlock = false
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Flags: s.flags, HasDEK: s.dek != nil}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) User() (models.UserInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.UserInfo{}, false
	}
	return *s.user, true
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags.IsAuthenticated
}

func (s *Store) NeedsUnlock() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags.NeedsUnlock
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags.IsLoading
}

func (s *Store) HasDEK() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dek != nil
}

// DEK returns a copy of the key, or false when the vault is locked.
func (s *Store) DEK() (string, bool) {
	s.mu.RLock()
	enclave := s.dek
	s.mu.RUnlock()

	if enclave == nil {
		return "", false
	}
	buf, err := enclave.Open()
	if err != nil {
		return "", false
	}
	defer buf.Destroy()
	return string(buf.Bytes()), true
}

func seal(dek string) (*memguard.Enclave, error) {
	if dek == "" {
		return nil, ErrEmptyDEK
	}
	return memguard.NewEnclave([]byte(dek)), nil
}

// Establish records a completed login: user, authenticated, unlocked.
func (s *Store) Establish(user models.UserInfo, dek string) error {
	enclave, err := seal(dek)
	if err != nil {
		return err
	}
	s.update(func() {
		s.user = &user
		s.dek = enclave
		s.flags.IsAuthenticated = true
		s.flags.NeedsUnlock = false
	})
	return nil
}

// SetAuthenticated records a valid server session. Without a DEK in memory
// the session is valid but the vault is locked.
func (s *Store) SetAuthenticated(user models.UserInfo) {
	s.update(func() {
		s.user = &user
		s.flags.IsAuthenticated = true
		s.flags.NeedsUnlock = s.dek == nil
	})
}

// Unlock stores a freshly derived DEK for the current session.
func (s *Store) Unlock(dek string) error {
	enclave, err := seal(dek)
	if err != nil {
		return err
	}
	s.update(func() {
		s.dek = enclave
		s.flags.NeedsUnlock = false
	})
	return nil
}

// MarkLocked flags a missing DEK. It never changes IsAuthenticated.
func (s *Store) MarkLocked() {
	s.update(func() {
		s.flags.NeedsUnlock = s.flags.IsAuthenticated && s.dek == nil
	})
}

func (s *Store) SetLoading(loading bool) {
	s.update(func() {
		s.flags.IsLoading = loading
	})
}

// Clear drops the DEK, the user and the auth flags. IsLoading is left to
// whoever set it.
func (s *Store) Clear() {
	s.update(func() {
		s.dek = nil
		s.user = nil
		s.flags.IsAuthenticated = false
		s.flags.NeedsUnlock = false
	})
}
