// Package session holds the client's authentication state and keeps it in
// durable storage across restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"life-auth/internal/util"
)

// RecordName is the storage key of the persisted session.
const RecordName = "life.auth.session"

const recordVersion = 0

var ErrStoreClosed = errors.New("session store closed")

type User struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber"`
}

// Session is a point-in-time view of the store. IsAuthenticated is true
// exactly when both User and Token are set. An empty Token means none.
type Session struct {
	User            *User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
}

// persisted is the stored form. IsLoading is never written.
type persisted struct {
	State struct {
		User            *User   `json:"user"`
		Token           *string `json:"token"`
		IsAuthenticated bool    `json:"isAuthenticated"`
	} `json:"state"`
	Version int `json:"version"`
}

// Store is the single owner of the client session. Mutations are
// serialized; user and token changes are written to Storage before the
// mutator returns.
type Store struct {
	mu      sync.Mutex
	storage Storage
	logger  *zap.Logger

	user      *User
	token     string
	isLoading bool
	closed    bool
	// rev counts user and token changes.
	rev       uint64

	hydrateOnce sync.Once
	hydrated    chan struct{}
	done        chan struct{}

	listenersMu sync.Mutex
	listeners   map[int]func(Session)
	nextID      int
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:   storage,
		logger:    util.Named("session"),
		hydrated:  make(chan struct{}),
		done:      make(chan struct{}),
		listeners: make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) SetUser(ctx context.Context, user *User) error {
	return s.mutate(ctx, true, func() {
		s.user = copyUser(user)
	})
}

func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.mutate(ctx, true, func() {
		s.token = token
	})
}

func (s *Store) SetLoading(loading bool) error {
	return s.mutate(context.Background(), false, func() {
		s.isLoading = loading
	})
}

// Login sets user and token together.
func (s *Store) Login(ctx context.Context, user User, token string) error {
	return s.mutate(ctx, true, func() {
		s.user = &user
		s.token = token
	})
}

// Logout clears user and token together.
func (s *Store) Logout(ctx context.Context) error {
	return s.mutate(ctx, true, func() {
		s.user = nil
		s.token = ""
	})
}

// mutate applies fn under the lock, persists when asked, then notifies
// subscribers. The in-memory change stands even if persisting fails.
func (s *Store) mutate(ctx context.Context, persist bool, fn func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	fn()
	var err error
	if persist {
		s.rev++
		err = s.persistLocked(ctx)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return err
}

func (s *Store) persistLocked(ctx context.Context) error {
	var rec persisted
	rec.Version = recordVersion
	rec.State.User = copyUser(s.user)
	if s.token != "" {
		tok := s.token
		rec.State.Token = &tok
	}
	rec.State.IsAuthenticated = s.authenticatedLocked()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.storage.Save(ctx, RecordName, data); err != nil {
		s.logger.Error("Failed to persist session", zap.Error(err))
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Hydrate loads the persisted session, replacing user and token when a
// record exists. The stored isAuthenticated flag is ignored and derived
// again. A record read before a later SetUser, SetToken, Login or Logout
// is stale and not applied. The hydration gate opens whatever the outcome.
func (s *Store) Hydrate(ctx context.Context) error {
	defer s.hydrateOnce.Do(func() { close(s.hydrated) })

	s.mu.Lock()
	startRev := s.rev
	s.mu.Unlock()

	data, found, err := s.storage.Load(ctx, RecordName)
	if err != nil {
		s.logger.Error("Failed to load session", zap.Error(err))
		return fmt.Errorf("load session: %w", err)
	}
	if !found {
		return nil
	}

	var rec persisted
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("Discarding unreadable session record", zap.Error(err))
		_ = s.storage.Remove(ctx, RecordName)
		return fmt.Errorf("decode session: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.rev != startRev {
		s.mu.Unlock()
		s.logger.Debug("Skipping stale session record")
		return nil
	}
	s.user = copyUser(rec.State.User)
	s.token = ""
	if rec.State.Token != nil {
		s.token = *rec.State.Token
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("Session hydrated", zap.Bool("authenticated", snap.IsAuthenticated))
	s.notify(snap)
	return nil
}

// Hydrated reports whether Hydrate has finished at least once.
func (s *Store) Hydrated() bool {
	select {
	case <-s.hydrated:
		return true
	default:
		return false
	}
}

// WaitHydrated blocks until Hydrate has finished, the store is closed or
// ctx ends.
func (s *Store) WaitHydrated(ctx context.Context) error {
	select {
	case <-s.hydrated:
		return nil
	case <-s.done:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RestoreSession reports whether a token is present. The token is not
// checked with the server.
func (s *Store) RestoreSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned func removes it.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// Close tears the store down. Later mutations return ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.listenersMu.Lock()
	s.listeners = make(map[int]func(Session))
	s.listenersMu.Unlock()
}

func (s *Store) notify(snap Session) {
	s.listenersMu.Lock()
	fns := make([]func(Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) authenticatedLocked() bool {
	return s.user != nil && s.token != ""
}

func (s *Store) snapshotLocked() Session {
	return Session{
		User:            copyUser(s.user),
		Token:           s.token,
		IsAuthenticated: s.authenticatedLocked(),
		IsLoading:       s.isLoading,
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
