package credfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	cred := &Credential{APIToken: "tok-123", Workspace: "acme"}
	require.NoError(t, Save(path, cred))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cred, loaded)
}

func TestSave_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "credentials.json")

	require.NoError(t, Save(path, &Credential{APIToken: "tok"}))

	_, err := Load(path)
	assert.NoError(t, err)
}

func TestSave_OwnerOnlyPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, Save(path, &Credential{APIToken: "tok"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSave_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	require.NoError(t, Save(path, &Credential{APIToken: "old"}))
	require.NoError(t, Save(path, &Credential{APIToken: "new"}))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "new", loaded.APIToken)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestLoad_EmptyToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"api_token":""}`), 0600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredential)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, Save(path, &Credential{APIToken: "tok"}))

	require.NoError(t, Remove(path))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNoCredential)

	// Removing again is fine.
	assert.NoError(t, Remove(path))
}
