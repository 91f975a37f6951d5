package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFind(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	inHome := filepath.Join(home, HomeDirName, "corp.json")
	writeFile(t, inHome, `{"target_host": "a.example"}`)

	path, err := Find("corp.json")
	require.NoError(t, err)
	assert.Equal(t, inHome, path)

	abs := filepath.Join(t.TempDir(), "other.json")
	writeFile(t, abs, `{"target_host": "b.example"}`)
	path, err = Find(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, path)

	_, err = Find("missing.json")
	assert.True(t, errors.Is(err, ErrNotFound))

	c, err := Load("corp.json")
	require.NoError(t, err)
	assert.Equal(t, "a.example", c.TargetHost)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), `{"target_host": "a.example"}`)
	writeFile(t, filepath.Join(dir, "b.config"), `{"target_host": "b.example", "proxy_host": "p", "proxy_port": 1}`)
	writeFile(t, filepath.Join(dir, "broken.json"), `{`)
	writeFile(t, filepath.Join(dir, "invalid.json"), `{"target_port": 1}`)
	writeFile(t, filepath.Join(dir, "notes.txt"), `{"target_host": "c.example"}`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.json"), 0o700))

	configs, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a.json":   filepath.Join(dir, "a.json"),
		"b.config": filepath.Join(dir, "b.config"),
	}, configs)

	_, err = List(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
