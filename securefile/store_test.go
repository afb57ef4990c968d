package securefile_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spotin-app/spotin-go/securefile"
	"github.com/spotin-app/spotin-go/session"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func newTestStore(t *testing.T) (*securefile.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "keychain.json")
	store, err := securefile.New(path, testKey())
	require.NoError(t, err)
	return store, path
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := securefile.New(filepath.Join(t.TempDir(), "k.json"), []byte("short"))
	require.Error(t, err)

	_, err = securefile.New("", testKey())
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, session.KeyAuthToken, "token-1"))
	got, err := store.Get(ctx, session.KeyAuthToken)
	require.NoError(t, err)
	require.Equal(t, "token-1", got)

	// Overwrite replaces the previous value.
	require.NoError(t, store.Set(ctx, session.KeyAuthToken, "token-2"))
	got, err = store.Get(ctx, session.KeyAuthToken)
	require.NoError(t, err)
	require.Equal(t, "token-2", got)
}

func TestGetMissingKey(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	require.ErrorIs(t, err, session.ErrKeyNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, session.ErrKeyNotFound)
}

func TestValuesAreSealedOnDisk(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Set(context.Background(), session.KeyAuthToken, "super-secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret-token")
}

func TestValuesSurviveReopen(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, session.KeyUserSession, `{"id":"user-1"}`))

	reopened, err := securefile.New(path, testKey())
	require.NoError(t, err)
	got, err := reopened.Get(ctx, session.KeyUserSession)
	require.NoError(t, err)
	require.Equal(t, `{"id":"user-1"}`, got)
}

func TestWrongKeyFailsToUnseal(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Set(context.Background(), "k", "v"))

	other, err := securefile.New(path, bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)
	_, err = other.Get(context.Background(), "k")
	require.Error(t, err)
}
