package remote_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamokano/web_deployer/pkg/remote"
)

func writeKey(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("not a real key"), mode))
}

func TestFindKeyPath(t *testing.T) {
	t.Run("configured_path_wins", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		writeKey(t, filepath.Join(home, ".ssh", "id_rsa"), 0600)

		configured := filepath.Join(home, "deploy.pem")
		writeKey(t, configured, 0600)

		path, err := remote.FindKeyPath(configured, "demo-shop")
		require.NoError(t, err)
		assert.Equal(t, configured, path)
	})

	t.Run("missing_configured_path_is_an_error", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		writeKey(t, filepath.Join(home, ".ssh", "id_rsa"), 0600)

		_, err := remote.FindKeyPath(filepath.Join(home, "gone.pem"), "demo-shop")
		assert.ErrorContains(t, err, "configured ssh key not found")
	})

	t.Run("project_key_beats_default_keys", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		writeKey(t, filepath.Join(home, ".ssh", "demo-shop.pem"), 0600)
		writeKey(t, filepath.Join(home, ".ssh", "id_ed25519"), 0600)
		writeKey(t, filepath.Join(home, ".ssh", "id_rsa"), 0600)

		path, err := remote.FindKeyPath("", "demo-shop")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".ssh", "demo-shop.pem"), path)
	})

	t.Run("ed25519_beats_rsa", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		writeKey(t, filepath.Join(home, ".ssh", "id_ed25519"), 0600)
		writeKey(t, filepath.Join(home, ".ssh", "id_rsa"), 0600)

		path, err := remote.FindKeyPath("", "demo-shop")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), path)
	})

	t.Run("no_keys_at_all", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		_, err := remote.FindKeyPath("", "demo-shop")
		assert.ErrorContains(t, err, "no ssh key found")
		assert.ErrorContains(t, err, "demo-shop.pem")
	})
}

func TestValidateKeyPermissions(t *testing.T) {
	t.Run("owner_only_passes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		writeKey(t, path, 0600)

		assert.NoError(t, remote.ValidateKeyPermissions(path))
	})

	t.Run("read_only_passes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		writeKey(t, path, 0400)

		assert.NoError(t, remote.ValidateKeyPermissions(path))
	})

	t.Run("group_readable_fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		writeKey(t, path, 0640)

		err := remote.ValidateKeyPermissions(path)
		assert.ErrorContains(t, err, "chmod 600")
	})

	t.Run("world_readable_fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		writeKey(t, path, 0644)

		assert.Error(t, remote.ValidateKeyPermissions(path))
	})

	t.Run("missing_file_fails", func(t *testing.T) {
		err := remote.ValidateKeyPermissions(filepath.Join(t.TempDir(), "gone.pem"))
		assert.ErrorContains(t, err, "failed to stat ssh key")
	})
}

func TestLoadSigner(t *testing.T) {
	t.Run("checks_permissions_first", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		writeKey(t, path, 0644)

		_, err := remote.LoadSigner(path, "")
		assert.ErrorContains(t, err, "chmod 600")
	})

	t.Run("rejects_garbage_keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		writeKey(t, path, 0600)

		_, err := remote.LoadSigner(path, "")
		assert.ErrorContains(t, err, "failed to parse ssh key")
	})
}
