//go:build integration

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const defaultTimeout = 5 * time.Minute

// Harness builds the booktool binary and runs it against a throwaway
// Subversion repository with an English upstream and a translated copy.
type Harness struct {
	t        *testing.T
	root     string
	binary   string
	repoURL  string
	wc       string
	keepDirs bool
}

// NewHarness creates a new test harness. Tests are skipped when the svn
// tools are not installed.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	for _, tool := range []string{"svn", "svnadmin"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}

	root, err := os.MkdirTemp("", "booktool-integration-")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	h := &Harness{
		t:        t,
		root:     root,
		keepDirs: os.Getenv("INTEGRATION_KEEP_DIRS") == "1",
	}
	t.Cleanup(h.Cleanup)
	return h
}

// BuildBinary compiles cmd/booktool into the harness directory
func (h *Harness) BuildBinary(ctx context.Context) error {
	h.t.Helper()

	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.binary = filepath.Join(h.root, "booktool")
	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/booktool")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	h.t.Logf("Binary built at %s", h.binary)
	return nil
}

// CreateRepository creates a repository holding en/<files> and
// ru/book/<files> with identical content, then checks it out.
func (h *Harness) CreateRepository(ctx context.Context, files map[string]string) error {
	h.t.Helper()

	repoPath := filepath.Join(h.root, "repo")
	if _, _, err := h.run(ctx, h.root, "svnadmin", "create", repoPath); err != nil {
		return err
	}
	h.repoURL = "file://" + filepath.ToSlash(repoPath)
	h.wc = filepath.Join(h.root, "wc")

	if _, _, err := h.run(ctx, h.root, "svn", "checkout", h.repoURL, h.wc); err != nil {
		return err
	}
	for _, dir := range []string{"en", filepath.Join("ru", "book")} {
		for name, content := range files {
			if err := h.WriteFile(filepath.Join(dir, name), content); err != nil {
				return err
			}
		}
	}
	if _, _, err := h.SVN(ctx, "add", "en", "ru"); err != nil {
		return err
	}
	if _, _, err := h.SVN(ctx, "commit", "-m", "initial import"); err != nil {
		return err
	}
	_, _, err := h.SVN(ctx, "update")
	return err
}

// Cleanup removes the harness directory unless the test failed and
// INTEGRATION_KEEP_DIRS=1 is set.
func (h *Harness) Cleanup() {
	if h.keepDirs && h.t.Failed() {
		h.t.Logf("Test failed and INTEGRATION_KEEP_DIRS=1, keeping %s", h.root)
		return
	}
	if err := os.RemoveAll(h.root); err != nil {
		h.t.Logf("Warning: failed to remove %s: %v", h.root, err)
	}
}

// UpstreamURL returns the URL of the English book directory
func (h *Harness) UpstreamURL() string {
	return h.repoURL + "/en"
}

// WorkingCopy returns the checkout root
func (h *Harness) WorkingCopy() string {
	return h.wc
}

// SVN runs svn in the working copy root
func (h *Harness) SVN(ctx context.Context, args ...string) (string, string, error) {
	h.t.Helper()
	return h.run(ctx, h.wc, "svn", args...)
}

// Exec runs booktool with dir as working directory and returns its output
// and exit code.
func (h *Harness) Exec(ctx context.Context, dir string, args ...string) (string, string, int, error) {
	h.t.Helper()
	if h.binary == "" {
		return "", "", 0, errors.New("binary not built")
	}

	cmd := exec.CommandContext(ctx, h.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "HOME="+h.root)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// MustExec runs booktool and fails the test if it exits non-zero
func (h *Harness) MustExec(ctx context.Context, dir string, args ...string) (string, string) {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Exec(ctx, dir, args...)
	if err != nil {
		h.t.Fatalf("exec failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("command failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			exitCode, stdout, stderr, args)
	}
	return stdout, stderr
}

// WriteFile writes a file relative to the working copy root
func (h *Harness) WriteFile(rel, content string) error {
	path := filepath.Join(h.wc, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir parent: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// ReadFile reads a file relative to the working copy root
func (h *Harness) ReadFile(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(h.wc, rel))
	return string(data), err
}

func (h *Harness) run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("%s %s: %w: %s",
			name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), stderr.String(), nil
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)

// findProjectRoot walks up the directory tree from the current file to find go.mod
func findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
