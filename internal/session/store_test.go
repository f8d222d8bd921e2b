package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardtrader/cardtrader/internal/api"
)

func TestStore_RoundTrip(t *testing.T) {
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	user := api.User{ID: "u1", Name: "A"}
	require.NoError(t, store.SetAuth("t1", user))

	got := store.Current()
	assert.Equal(t, "t1", got.Token)
	require.NotNil(t, got.User)
	assert.Equal(t, user, *got.User)
	assert.True(t, got.Authenticated())
	assert.Equal(t, "t1", store.Token())

	require.NoError(t, store.ClearAuth())
	got = store.Current()
	assert.Empty(t, got.Token)
	assert.Nil(t, got.User)
	assert.False(t, got.Authenticated())
	assert.Empty(t, store.Token())
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetAuth("t1", api.User{ID: "u1", Name: "A"}))

	reopened, err := Open(dir, nil)
	require.NoError(t, err)

	got := reopened.Current()
	assert.Equal(t, "t1", got.Token)
	require.NotNil(t, got.User)
	assert.Equal(t, "u1", got.User.ID)
}

func TestStore_MissingFileMeansAnonymous(t *testing.T) {
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	assert.False(t, store.Current().Authenticated())
}

func TestStore_CorruptFileDiscarded(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, authFileName), []byte("{nope"), 0o600))

	store, err := Open(dir, nil)
	require.NoError(t, err)
	assert.False(t, store.Current().Authenticated())
}

func TestStore_RejectsEmptyToken(t *testing.T) {
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Error(t, store.SetAuth("", api.User{ID: "u1"}))
}

func TestStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetAuth("t1", api.User{ID: "u1"}))

	info, err := os.Stat(filepath.Join(dir, authFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestPrefs_DefaultAndRoundTrip(t *testing.T) {
	dir := t.TempDir()

	prefs, err := OpenPrefs(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, prefs.Theme())

	require.NoError(t, prefs.SetTheme(ThemeDark))
	assert.Equal(t, ThemeDark, prefs.Theme())

	reopened, err := OpenPrefs(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, reopened.Theme())
}

func TestPrefs_InvalidPersistedValueFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, themeFileName), []byte(`{"theme":"sepia"}`), 0o600))

	prefs, err := OpenPrefs(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, prefs.Theme())
}

func TestPrefs_RejectsUnknownTheme(t *testing.T) {
	prefs, err := OpenPrefs(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Error(t, prefs.SetTheme(Theme("sepia")))
}
