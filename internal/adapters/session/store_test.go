package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/medibook/internal/adapters/cache"
	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
)

func sampleSession() *entities.Session {
	return &entities.Session{
		Token: "tok-1",
		Identity: entities.Identity{
			UserID:    "u-1",
			Email:     "ana@example.com",
			Role:      entities.RolePatient,
			PatientID: 7,
			FirstName: "Ana",
		},
	}
}

func runStoreContract(t *testing.T, store providers.SessionStore) {
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty store must load nothing")

	require.NoError(t, store.Save(ctx, sampleSession()))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *sampleSession(), *got)

	replacement := sampleSession()
	replacement.Token = "tok-2"
	require.NoError(t, store.Save(ctx, replacement))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.Token)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, store.Clear(ctx), "clearing an empty store is not an error")
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	runStoreContract(t, NewFileStore(path))
}

func TestFileStore_FileIsOwnerOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(context.Background(), sampleSession()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_CorruptFileLoadsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	got, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_RejectsTokenlessSession(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	assert.Error(t, store.Save(context.Background(), &entities.Session{}))
}

func TestCacheStore(t *testing.T) {
	store := NewCacheStore(cache.NewMemoryAdapter(), "work", time.Hour)
	assert.Equal(t, "medibook:session:work", store.Key())
	runStoreContract(t, store)
}

func TestCacheStore_DefaultProfile(t *testing.T) {
	assert.Equal(t, "medibook:session:default", NewCacheStore(cache.NewMemoryAdapter(), "", 0).Key())
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore(nil))
}

func TestMemoryStore_Seeded(t *testing.T) {
	store := NewMemoryStore(sampleSession())
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.Token)
}
