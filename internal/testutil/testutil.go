// Package testutil holds helpers shared by package tests that need to stand
// in for external programs such as svn or make.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// FakeBinary writes an executable shell script named name into a fresh temp
// dir and returns its absolute path. body is the script after the shebang.
// Tests using it are skipped on Windows.
func FakeBinary(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binaries need a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + body
	if !strings.HasSuffix(script, "\n") {
		script += "\n"
	}
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// RecordingBinary writes a fake executable that appends its arguments, one
// invocation per line, to a log file and then runs body. It returns the
// binary path and the log path.
func RecordingBinary(t *testing.T, name, body string) (string, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), name+".log")
	bin := FakeBinary(t, name, `echo "$@" >> '`+logPath+`'`+"\n"+body)
	return bin, logPath
}

// Invocations returns the argument lines recorded by a RecordingBinary
func Invocations(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// WriteFiles creates files under dir from a map of relative path to content
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}
