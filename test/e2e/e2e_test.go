package e2e

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issuefsBin string

func TestMain(m *testing.M) {
	if _, err := os.Stat("/dev/fuse"); err != nil {
		fmt.Println("skipping e2e tests: /dev/fuse not available")
		os.Exit(0)
	}

	// Build issuefs binary once for all tests
	tmpBinDir, err := os.MkdirTemp("", "issuefs-bin")
	if err != nil {
		panic(err)
	}

	issuefsBin = filepath.Join(tmpBinDir, "issuefs")

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot determine current file path")
	}
	projRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")

	cmd := exec.Command("go", "build", "-o", issuefsBin, "-gcflags=all=-N -l", "./cmd")
	cmd.Dir = projRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		panic(string(out))
	}

	code := m.Run()
	_ = os.RemoveAll(tmpBinDir)
	os.Exit(code)
}

func TestE2EVersionFile(t *testing.T) {
	jira := newMockJira(t)
	inst := startIssueFS(t, jira.URL)
	defer inst.Stop()

	data, err := os.ReadFile(filepath.Join(inst.MountDir, "version.txt"))
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "issuefs tracker connections\n"), text)
	assert.Contains(t, text, "Jira:\n")
	assert.Contains(t, text, "  Version: 9.12.0\n")
	assert.Contains(t, text, "Connection tested at mount time: ")
}

func TestE2EQueryFolder(t *testing.T) {
	jira := newMockJira(t)
	inst := startIssueFS(t, jira.URL)
	defer inst.Stop()

	dir := filepath.Join(inst.MountDir, "bugs")
	require.NoError(t, os.Mkdir(dir, 0o755))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.yaml", entries[0].Name())

	cfg := "enabled: true\npersistent: true\njira:\n  jql: project = ABC\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644))

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	// os.ReadDir sorts by name
	assert.Equal(t, []string{"ABC-1.txt", "config.yaml"}, names)

	body, err := os.ReadFile(filepath.Join(dir, "ABC-1.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "Jira issue: ABC-1\n")
	assert.Contains(t, string(body), "Summary: Login fails\n")
	assert.Contains(t, string(body), "Comment by Ann on 2024-03-01T10:00:00Z: seen it\n")

	_, err = os.ReadFile(filepath.Join(dir, "ABC-2.txt"))
	assert.Error(t, err)

	// Issue files are read only
	err = os.WriteFile(filepath.Join(dir, "ABC-1.txt"), []byte("x"), 0o644)
	assert.Error(t, err)

	inst.Stop()

	stored, err := os.ReadFile(inst.StorePath)
	require.NoError(t, err)
	assert.Contains(t, string(stored), "bugs:")
	assert.Contains(t, string(stored), "jql: project = ABC")
}

// mockJira answers the Jira REST endpoints issuefs uses
func newMockJira(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/serverInfo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"9.12.0","buildNumber":"9120","serverTitle":"Mock Jira"}`)
	})
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("jql") != "project = ABC" {
			fmt.Fprint(w, `{"issues":[]}`)
			return
		}
		fmt.Fprint(w, `{"issues":[{"key":"ABC-1","fields":{"summary":"Login fails","description":"Steps"}}]}`)
	})
	mux.HandleFunc("/rest/api/2/issue/ABC-1/comment", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"comments":[{"author":{"displayName":"Ann"},"body":"seen it","created":"2024-03-01T10:00:00.000+0000"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// IssueFSInstance is a running issuefs process
type IssueFSInstance struct {
	cmd       *exec.Cmd
	MountDir  string
	StorePath string
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	stopped   bool
}

func startIssueFS(t *testing.T, jiraURL string) *IssueFSInstance {
	base := t.TempDir()
	mountDir := filepath.Join(base, "mnt")
	storePath := filepath.Join(base, "store.yaml")
	require.NoError(t, os.MkdirAll(mountDir, 0o755))

	cmd := exec.Command(issuefsBin, "--store", storePath, "-v", "4", mountDir)
	cmd.Env = append(os.Environ(),
		"JIRA_URL="+jiraURL,
		"JIRA_API_TOKEN=test-token",
		"GITHUB_API_TOKEN=",
		"BUGZILLA_URL=",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Start())

	inst := &IssueFSInstance{cmd: cmd, MountDir: mountDir, StorePath: storePath, stdout: &stdout, stderr: &stderr}
	if err := inst.WaitForMount(15 * time.Second); err != nil {
		inst.Stop()
		t.Fatalf("issuefs mount failed: %v\n%s", err, stderr.String())
	}
	return inst
}

// Stop interrupts the process and waits for it to unmount
func (w *IssueFSInstance) Stop() {
	if w.stopped || w.cmd.Process == nil {
		return
	}
	w.stopped = true
	_ = w.cmd.Process.Signal(os.Interrupt) // Process may have already exited

	done := make(chan error, 1)
	go func() {
		done <- w.cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = w.cmd.Process.Kill()
		<-done
		_ = exec.Command("fusermount", "-u", w.MountDir).Run()
	}
}

// WaitForMount waits until version.txt shows up in the mount
func (w *IssueFSInstance) WaitForMount(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(w.MountDir, "version.txt")); err == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for issuefs mount to be ready")
}
