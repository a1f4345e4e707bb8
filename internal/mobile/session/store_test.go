package session

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testUser = User{ID: "user_1", PhoneNumber: "13800138000"}

func newStore(t *testing.T, st Storage) *Store {
	t.Helper()
	s := NewStore(st, WithLogger(zap.NewNop()))
	t.Cleanup(s.Close)
	return s
}

type failingStorage struct {
	loadErr error
	saveErr error
}

func (f failingStorage) Load(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.loadErr
}

func (f failingStorage) Save(context.Context, string, []byte) error { return f.saveErr }

func (f failingStorage) Remove(context.Context, string) error { return nil }

func TestStore_LoginLogout(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, NewMemoryStorage())

	require.NoError(t, s.Login(ctx, testUser, "tok"))
	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "tok", snap.Token)
	assert.Equal(t, testUser, *snap.User)

	require.NoError(t, s.Logout(ctx))
	snap = s.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
}

func TestStore_AuthenticatedNeedsBoth(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, NewMemoryStorage())

	u := testUser
	require.NoError(t, s.SetUser(ctx, &u))
	assert.False(t, s.Snapshot().IsAuthenticated)

	require.NoError(t, s.SetToken(ctx, "tok"))
	assert.True(t, s.Snapshot().IsAuthenticated)

	require.NoError(t, s.SetToken(ctx, ""))
	assert.False(t, s.Snapshot().IsAuthenticated)

	require.NoError(t, s.SetToken(ctx, "tok"))
	require.NoError(t, s.SetUser(ctx, nil))
	assert.False(t, s.Snapshot().IsAuthenticated)
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := newStore(t, NewMemoryStorage())
	require.NoError(t, s.Login(context.Background(), testUser, "tok"))

	snap := s.Snapshot()
	snap.User.PhoneNumber = "changed"
	assert.Equal(t, testUser.PhoneNumber, s.Snapshot().User.PhoneNumber)
}

func TestStore_PersistsPartialView(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	s := newStore(t, st)

	require.NoError(t, s.SetLoading(true))
	_, found, err := st.Load(ctx, RecordName)
	require.NoError(t, err)
	assert.False(t, found, "loading flag alone must not be persisted")

	require.NoError(t, s.Login(ctx, testUser, "tok"))

	state := loadPersistedState(t, st)
	assert.Equal(t, "tok", state["token"])
	assert.Equal(t, true, state["isAuthenticated"])
	assert.Equal(t, map[string]interface{}{"id": "user_1", "phoneNumber": "13800138000"}, state["user"])
	assert.NotContains(t, state, "isLoading")

	require.NoError(t, s.Logout(ctx))

	state = loadPersistedState(t, st)
	require.Contains(t, state, "user")
	require.Contains(t, state, "token")
	assert.Nil(t, state["user"])
	assert.Nil(t, state["token"])
	assert.Equal(t, false, state["isAuthenticated"])
	assert.NotContains(t, state, "isLoading")
}

func loadPersistedState(t *testing.T, st Storage) map[string]interface{} {
	t.Helper()
	data, found, err := st.Load(context.Background(), RecordName)
	require.NoError(t, err)
	require.True(t, found)

	var rec struct {
		State   map[string]interface{} `json:"state"`
		Version int                    `json:"version"`
	}
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, 0, rec.Version)
	return rec.State
}

func TestStore_HydrateRestoresAndRederives(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()

	first := newStore(t, st)
	require.NoError(t, first.Login(ctx, testUser, "tok"))
	first.Close()

	second := newStore(t, st)
	assert.False(t, second.Hydrated())
	require.NoError(t, second.Hydrate(ctx))
	assert.True(t, second.Hydrated())

	snap := second.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "tok", snap.Token)
	assert.False(t, snap.IsLoading)
	assert.True(t, second.RestoreSession())
}

func TestStore_HydrateIgnoresStoredFlag(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	require.NoError(t, st.Save(ctx, RecordName,
		[]byte(`{"state":{"user":null,"token":"tok","isAuthenticated":true},"version":0}`)))

	s := newStore(t, st)
	require.NoError(t, s.Hydrate(ctx))

	snap := s.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, "tok", snap.Token)
	assert.True(t, s.RestoreSession())
}

func TestStore_HydrateNullToken(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	require.NoError(t, st.Save(ctx, RecordName,
		[]byte(`{"state":{"user":{"id":"user_1","phoneNumber":"13800138000"},"token":null,"isAuthenticated":false},"version":0}`)))

	s := newStore(t, st)
	require.NoError(t, s.Hydrate(ctx))
	assert.False(t, s.RestoreSession())
	assert.NotNil(t, s.Snapshot().User)
}

func TestStore_HydrateFailureOpensGate(t *testing.T) {
	s := newStore(t, failingStorage{loadErr: errors.New("disk gone")})

	require.Error(t, s.Hydrate(context.Background()))
	assert.True(t, s.Hydrated())
	assert.NoError(t, s.WaitHydrated(context.Background()))
	assert.False(t, s.Snapshot().IsAuthenticated)
}

func TestStore_HydrateCorruptRecord(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	require.NoError(t, st.Save(ctx, RecordName, []byte(`{not json`)))

	s := newStore(t, st)
	require.Error(t, s.Hydrate(ctx))
	assert.True(t, s.Hydrated())

	_, found, err := st.Load(ctx, RecordName)
	require.NoError(t, err)
	assert.False(t, found)
}

// gatedStorage holds Load until release is closed.
type gatedStorage struct {
	*MemoryStorage
	loading chan struct{}
	release chan struct{}
}

func (g *gatedStorage) Load(ctx context.Context, name string) ([]byte, bool, error) {
	data, found, err := g.MemoryStorage.Load(ctx, name)
	close(g.loading)
	<-g.release
	return data, found, err
}

func TestStore_HydrateDoesNotOverwriteNewerLogin(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	require.NoError(t, mem.Save(ctx, RecordName,
		[]byte(`{"state":{"user":{"id":"user_old","phoneNumber":"13900139000"},"token":"old","isAuthenticated":true},"version":0}`)))

	st := &gatedStorage{MemoryStorage: mem, loading: make(chan struct{}), release: make(chan struct{})}
	s := newStore(t, st)

	done := make(chan error, 1)
	go func() { done <- s.Hydrate(ctx) }()

	<-st.loading
	require.NoError(t, s.Login(ctx, testUser, "new"))
	close(st.release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, "new", snap.Token)
	assert.Equal(t, testUser, *snap.User)
	assert.True(t, s.Hydrated())

	state := loadPersistedState(t, mem)
	assert.Equal(t, "new", state["token"])
}

func TestStore_WaitHydrated(t *testing.T) {
	s := newStore(t, NewMemoryStorage())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitHydrated(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- s.WaitHydrated(context.Background()) }()
	require.NoError(t, s.Hydrate(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitHydrated did not return")
	}
}

func TestStore_PersistFailureKeepsMemoryState(t *testing.T) {
	boom := errors.New("write failed")
	s := newStore(t, failingStorage{saveErr: boom})

	err := s.Login(context.Background(), testUser, "tok")
	assert.ErrorIs(t, err, boom)
	assert.True(t, s.Snapshot().IsAuthenticated)
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, NewMemoryStorage())

	var mu sync.Mutex
	var seen []Session
	unsubscribe := s.Subscribe(func(snap Session) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})

	require.NoError(t, s.SetLoading(true))
	require.NoError(t, s.Login(ctx, testUser, "tok"))
	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Logout(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsLoading)
	assert.True(t, seen[1].IsAuthenticated)
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryStorage(), WithLogger(zap.NewNop()))
	s.Close()
	s.Close()

	assert.ErrorIs(t, s.Login(ctx, testUser, "tok"), ErrStoreClosed)
	assert.ErrorIs(t, s.SetLoading(true), ErrStoreClosed)
	assert.ErrorIs(t, s.WaitHydrated(ctx), ErrStoreClosed)
}

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	st, err := OpenSQLiteStorage(ctx, path)
	require.NoError(t, err)
	s := NewStore(st, WithLogger(zap.NewNop()))
	require.NoError(t, s.Login(ctx, testUser, "tok"))
	s.Close()
	require.NoError(t, st.Close())

	st, err = OpenSQLiteStorage(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	restored := newStore(t, st)
	require.NoError(t, restored.Hydrate(ctx))
	assert.True(t, restored.Snapshot().IsAuthenticated)
	assert.Equal(t, testUser, *restored.Snapshot().User)
}
