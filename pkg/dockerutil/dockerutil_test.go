package dockerutil_test

import (
	"archive/tar"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/registry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamokano/web_deployer/pkg/dockerutil"
)

func TestRegistryAuth(t *testing.T) {
	encoded, err := dockerutil.RegistryAuth("AWS", "token-value", "123456789012.dkr.ecr.us-east-1.amazonaws.com")
	require.NoError(t, err)

	// The engine decodes the header with URL-safe base64
	data, err := base64.URLEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var auth registry.AuthConfig
	require.NoError(t, json.Unmarshal(data, &auth))
	assert.Equal(t, "AWS", auth.Username)
	assert.Equal(t, "token-value", auth.Password)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com", auth.ServerAddress)
}

func TestDecodeStream(t *testing.T) {
	t.Run("consumes_progress_lines", func(t *testing.T) {
		stream := strings.NewReader(
			`{"stream":"Step 1/4 : FROM alpine:3.21\n"}` + "\n" +
				`{"status":"Pushing","progress":"[=====>    ]"}` + "\n" +
				`{"stream":"Successfully built 4f5a8c1d2e3b\n"}` + "\n",
		)

		assert.NoError(t, dockerutil.DecodeStream(stream, zerolog.Nop()))
	})

	t.Run("surfaces_embedded_errors", func(t *testing.T) {
		stream := strings.NewReader(
			`{"stream":"Step 1/4 : FROM alpine:3.21\n"}` + "\n" +
				`{"error":"denied: not authorized"}` + "\n",
		)

		err := dockerutil.DecodeStream(stream, zerolog.Nop())
		assert.ErrorContains(t, err, "docker reported: denied: not authorized")
	})

	t.Run("rejects_garbage", func(t *testing.T) {
		err := dockerutil.DecodeStream(strings.NewReader("not json"), zerolog.Nop())
		assert.ErrorContains(t, err, "failed to decode docker stream")
	})

	t.Run("empty_stream_is_fine", func(t *testing.T) {
		assert.NoError(t, dockerutil.DecodeStream(strings.NewReader(""), zerolog.Nop()))
	})
}

func TestLabels(t *testing.T) {
	assert.Equal(t, map[string]string{"managed-by": "web_deployer"}, dockerutil.Labels())
}

func TestBuildContextTar(t *testing.T) {
	writeFile := func(t *testing.T, dir, name, content string) {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	// readTar returns the file entries keyed by name
	readTar := func(t *testing.T, r io.Reader) map[string]string {
		t.Helper()
		entries := make(map[string]string)
		tr := tar.NewReader(r)
		for {
			header, err := tr.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			if header.Typeflag == tar.TypeDir {
				entries[header.Name] = ""
				continue
			}
			content, err := io.ReadAll(tr)
			require.NoError(t, err)
			entries[header.Name] = string(content)
		}
		return entries
	}

	t.Run("archives_the_directory_tree", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "main.go", "package main")
		writeFile(t, dir, "static/index.html", "<html></html>")

		r, err := dockerutil.BuildContextTar(dir, nil)
		require.NoError(t, err)

		entries := readTar(t, r)
		assert.Equal(t, "package main", entries["main.go"])
		assert.Equal(t, "<html></html>", entries["static/index.html"])
		assert.Contains(t, entries, "static/")
	})

	t.Run("skips_git_directories", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "main.go", "package main")
		writeFile(t, dir, ".git/HEAD", "ref: refs/heads/main")

		r, err := dockerutil.BuildContextTar(dir, nil)
		require.NoError(t, err)

		entries := readTar(t, r)
		assert.Contains(t, entries, "main.go")
		assert.NotContains(t, entries, ".git/HEAD")
		assert.NotContains(t, entries, ".git/")
	})

	t.Run("extra_entries_shadow_checked_in_files", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "Dockerfile", "FROM scratch")
		writeFile(t, dir, "main.go", "package main")

		r, err := dockerutil.BuildContextTar(dir, map[string][]byte{
			"Dockerfile": []byte("FROM alpine:3.21"),
		})
		require.NoError(t, err)

		entries := readTar(t, r)
		assert.Equal(t, "FROM alpine:3.21", entries["Dockerfile"])
		assert.Equal(t, "package main", entries["main.go"])
	})

	t.Run("extra_entries_need_no_file_on_disk", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "main.go", "package main")

		r, err := dockerutil.BuildContextTar(dir, map[string][]byte{
			"Dockerfile": []byte("FROM alpine:3.21"),
		})
		require.NoError(t, err)

		entries := readTar(t, r)
		assert.Equal(t, "FROM alpine:3.21", entries["Dockerfile"])
	})

	t.Run("missing_directory_fails", func(t *testing.T) {
		_, err := dockerutil.BuildContextTar(filepath.Join(t.TempDir(), "nope"), nil)
		assert.ErrorContains(t, err, "failed to archive build context")
	})
}
