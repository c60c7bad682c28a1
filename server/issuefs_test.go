package server

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/issuefs/config"
	"github.com/brettbedarf/issuefs/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubServer struct {
	err   error
	calls int
}

func (s *stubServer) Unmount() error {
	s.calls++
	return s.err
}

// newMounted returns an IssueFS that looks mounted at /mnt/issues with one
// persistent folder called keep
func newMounted(t *testing.T, srv mountServer) (*IssueFS, string) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.StorePath = filepath.Join(t.TempDir(), "folders.yaml")

	fs := New(cfg, nil)
	fs.mount = "/mnt/issues"
	fs.server = srv

	require.NoError(t, fs.Mkdir("/keep"))
	p := "/keep/config.yaml"
	text := "persistent: true\njira:\n  jql: project = ABC\n"
	_, err := fs.Write(p, []byte(text), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Flush(p))
	fs.Release(p)
	return fs, cfg.StorePath
}

func loadSaved(t *testing.T, path string) []store.SavedFolder {
	t.Helper()
	saved, err := store.New(path).Load("/mnt/issues")
	require.NoError(t, err)
	return saved
}

func TestUnmount_Saves(t *testing.T) {
	t.Parallel()

	srv := &stubServer{}
	fs, path := newMounted(t, srv)

	require.NoError(t, fs.Unmount())
	assert.Equal(t, 1, srv.calls)
	saved := loadSaved(t, path)
	require.Len(t, saved, 1)
	assert.Equal(t, "keep", saved[0].Name)
}

func TestUnmount_SavesWhenUnmountFails(t *testing.T) {
	t.Parallel()

	busy := errors.New("device or resource busy")
	fs, path := newMounted(t, &stubServer{err: busy})

	err := fs.Unmount()
	require.Error(t, err)
	assert.ErrorIs(t, err, busy)

	saved := loadSaved(t, path)
	require.Len(t, saved, 1)
	assert.Equal(t, "project = ABC", saved[0].Config.Jira.JQL)
}

func TestUnmount_AlreadyUnmounted(t *testing.T) {
	t.Parallel()

	srv := &stubServer{err: errors.New("not mounted")}
	fs, path := newMounted(t, srv)
	fs.done = make(chan struct{})
	close(fs.done)

	require.NoError(t, fs.Unmount())
	assert.Zero(t, srv.calls, "server unmount is skipped once the kernel connection ended")
	assert.Len(t, loadSaved(t, path), 1)
}

func TestUnmount_NotServed(t *testing.T) {
	t.Parallel()

	fs := New(config.NewDefaultConfig(), nil)
	assert.NoError(t, fs.Unmount())
	assert.Nil(t, fs.Done())
}
