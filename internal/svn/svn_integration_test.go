//go:build integration

package svn

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runTool runs an external tool and fails the test on error.
func runTool(t *testing.T, dir string, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v: %v: %s", name, args, err, out)
	}
	return string(out)
}

// newUpstream creates a local repository with two revisions of ch01.xml and
// returns its file:// URL.
func newUpstream(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("svnadmin"); err != nil {
		t.Skip("svnadmin not installed")
	}

	root := t.TempDir()
	repoPath := filepath.Join(root, "repo")
	runTool(t, root, "svnadmin", "create", repoPath)
	url := "file://" + repoPath

	wc := filepath.Join(root, "wc")
	runTool(t, root, "svn", "checkout", url, wc)
	file := filepath.Join(wc, "ch01.xml")
	require.NoError(t, os.WriteFile(file, []byte("<para>one</para>\n"), 0644))
	runTool(t, wc, "svn", "add", "ch01.xml")
	runTool(t, wc, "svn", "commit", "-m", "initial")
	require.NoError(t, os.WriteFile(file, []byte("<para>one</para>\n<para>two</para>\n"), 0644))
	runTool(t, wc, "svn", "commit", "-m", "second paragraph")

	return url
}

func TestShellClient_RealSVN(t *testing.T) {
	ctx := context.Background()
	url := newUpstream(t)

	local := filepath.Join(t.TempDir(), "local")
	runTool(t, "", "svn", "checkout", "-r", "1", url, local)

	client := NewShellClient("svn", local)

	require.NoError(t, client.PropSet(ctx, "last-sync", "1", "ch01.xml"))
	val, err := client.PropGet(ctx, "last-sync", "ch01.xml")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	rev, err := client.Revision(ctx, "ch01.xml")
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	diff, err := client.Diff(ctx, url+"/ch01.xml", 1, 2)
	require.NoError(t, err)
	assert.Contains(t, diff, "+<para>two</para>")

	logOut, err := client.Log(ctx, url+"/ch01.xml", 1, 2)
	require.NoError(t, err)
	assert.Contains(t, logOut, "second paragraph")

	_, err = client.Merge(ctx, url+"/ch01.xml", 1, 2, "ch01.xml", false)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(local, "ch01.xml"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "two"))
}
