package tokenstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/config"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

func backends(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func() Store {
			s, err := NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return s
		},
		"sqlite-file": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "vulnpilot.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			tok, err := s.Token(ctx)
			require.NoError(t, err)
			assert.Empty(t, tok, "fresh store has no token")

			require.NoError(t, s.SetToken(ctx, "first"))
			require.NoError(t, s.SetToken(ctx, "abc123"))
			tok, err = s.Token(ctx)
			require.NoError(t, err)
			assert.Equal(t, "abc123", tok, "SetToken overwrites")

			user := &api.User{ID: "1", Username: "alice"}
			require.NoError(t, s.SetUser(ctx, user))
			got, err := s.User(ctx)
			require.NoError(t, err)
			assert.Equal(t, user, got)

			require.NoError(t, s.SetRepoNames(ctx, []string{"r1", "r2"}))
			names, err := s.RepoNames(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"r1", "r2"}, names)

			require.NoError(t, s.Clear(ctx))
			tok, _ = s.Token(ctx)
			got, _ = s.User(ctx)
			names, _ = s.RepoNames(ctx)
			assert.Empty(t, tok)
			assert.Nil(t, got)
			assert.Nil(t, names)
		})
	}
}

func TestEmptyTokenClears(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			require.NoError(t, s.SetToken(ctx, "abc"))
			require.NoError(t, s.SetToken(ctx, "  "))
			tok, err := s.Token(ctx)
			require.NoError(t, err)
			assert.Empty(t, tok)

			require.NoError(t, s.SetUser(ctx, &api.User{ID: "2"}))
			require.NoError(t, s.SetUser(ctx, nil))
			u, err := s.User(ctx)
			require.NoError(t, err)
			assert.Nil(t, u)
		})
	}
}

func TestUserCacheIsExactJSON(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SetUser(ctx, &api.User{ID: "1", Username: "alice"}))

	raw, ok := s.Raw(SlotUser)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"1","username":"alice"}`, raw)
}

func TestCorruptUserCache(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.put(ctx, SlotUser, "{not json"))

	u, err := s.User(ctx)
	assert.Nil(t, u)
	assert.True(t, verrors.IsCode(err, verrors.ErrCodeStorageCorrupt))
}

func TestFileStorePermissionsAndSharing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "session.json")

	a, err := NewFileStore(path)
	require.NoError(t, err)
	b, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, a.SetToken(ctx, "shared"))
	tok, err := b.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared", tok, "second handle sees first handle's write")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		dirInfo, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]string
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "shared", doc[SlotToken])

	require.NoError(t, b.Clear(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clearing every slot removes the file")
}

func TestFileStoreReportsDamagedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.Token(ctx)
	assert.True(t, verrors.IsCode(err, verrors.ErrCodeStorageCorrupt))

	err = s.SetToken(ctx, "fresh")
	assert.True(t, verrors.IsCode(err, verrors.ErrCodeStorageCorrupt))
	data, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	assert.Equal(t, "garbage", string(data), "a damaged file is not overwritten by a write")

	require.NoError(t, s.Clear(ctx))
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
	require.NoError(t, s.SetToken(ctx, "fresh"))
	tok, _ = s.Token(ctx)
	assert.Equal(t, "fresh", tok)
}

func TestFileStoreReportsUnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"auth_token":"abc"}`), 0o000))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.Token(ctx)
	assert.True(t, verrors.IsCode(err, verrors.ErrCodeStorageRead))
	assert.True(t, verrors.IsCode(s.SetToken(ctx, "x"), verrors.ErrCodeStorageRead))
}

func TestNewFileStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewFileStore(" ")
	assert.True(t, verrors.IsCode(err, verrors.ErrCodeConfigInvalid))
}

func TestSQLiteStoreClosed(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Token(context.Background())
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestSQLiteFilePathFromDSN(t *testing.T) {
	tests := []struct {
		dsn    string
		path   string
		onDisk bool
	}{
		{":memory:", "", false},
		{"", "", false},
		{"/tmp/x.db", "/tmp/x.db", true},
		{"file:/tmp/y.db?cache=shared", "/tmp/y.db", true},
		{"file::memory:", "", false},
		{"postgres://host/db", "", false},
	}
	for _, tt := range tests {
		path, onDisk := sqliteFilePathFromDSN(tt.dsn)
		assert.Equal(t, tt.path, path, tt.dsn)
		assert.Equal(t, tt.onDisk, onDisk, tt.dsn)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		want    any
	}{
		{config.StoreBackendMemory, &MemoryStore{}},
		{config.StoreBackendFile, &FileStore{}},
		{config.StoreBackendSQLite, &SQLiteStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Storage.Backend = tt.backend
			cfg.Storage.DataDir = dir
			s, err := Open(cfg)
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}

	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "redis"
	_, err := Open(cfg)
	assert.Error(t, err)
}
