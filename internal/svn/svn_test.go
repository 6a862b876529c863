package svn

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svnbook/booktool/internal/testutil"
)

const fakeSVN = `
case "$1" in
  propget) echo "1200" ;;
  info) cat <<'XML'
<?xml version="1.0" encoding="UTF-8"?>
<info>
<entry kind="file" path="ch01.xml" revision="1342">
<url>http://svn.example.org/book/ch01.xml</url>
</entry>
</info>
XML
  ;;
  diff) printf 'Index: ch01.xml\n+new line\n' ;;
  log) echo "r1342 | editor | fix typo" ;;
  merge) echo "U    ch01.xml" ;;
  propset) echo "property set" ;;
esac
`

func TestShellClient_CommandLines(t *testing.T) {
	ctx := context.Background()
	bin, logPath := testutil.RecordingBinary(t, "svn", fakeSVN)
	client := NewShellClient(bin, t.TempDir())

	val, err := client.PropGet(ctx, "last-sync", "ch01.xml")
	require.NoError(t, err)
	assert.Equal(t, "1200", val)

	rev, err := client.Revision(ctx, "ch01.xml")
	require.NoError(t, err)
	assert.Equal(t, 1342, rev)

	diff, err := client.Diff(ctx, "http://svn.example.org/book/ch01.xml", 1200, 1342)
	require.NoError(t, err)
	assert.Equal(t, "Index: ch01.xml\n+new line\n", diff)

	logOut, err := client.Log(ctx, "http://svn.example.org/book/ch01.xml", 1200, 1342)
	require.NoError(t, err)
	assert.Contains(t, logOut, "fix typo")

	mergeOut, err := client.Merge(ctx, "http://svn.example.org/book/ch01.xml", 1200, 1342, "ch01.xml", true)
	require.NoError(t, err)
	assert.Contains(t, mergeOut, "U    ch01.xml")

	require.NoError(t, client.PropSet(ctx, "last-sync", "1342", "ch01.xml"))

	assert.Equal(t, []string{
		"propget --non-interactive last-sync ch01.xml",
		"info --non-interactive --xml ch01.xml",
		"diff --non-interactive -r 1200:1342 http://svn.example.org/book/ch01.xml",
		"log --non-interactive -r 1200:1342 http://svn.example.org/book/ch01.xml",
		"merge --non-interactive -r 1200:1342 http://svn.example.org/book/ch01.xml ch01.xml --dry-run",
		"propset --non-interactive last-sync 1342 ch01.xml",
	}, testutil.Invocations(t, logPath))
}

func TestShellClient_FailureCarriesStderr(t *testing.T) {
	bin := testutil.FakeBinary(t, "svn", `echo "svn: E155007: not a working copy" >&2; exit 1`)
	client := NewShellClient(bin, t.TempDir())

	_, err := client.PropGet(context.Background(), "last-sync", "ch01.xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E155007")

	_, err = client.Merge(context.Background(), "url", 1, 2, "ch01.xml", false)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "svn merge ch01.xml failed"))
}

func TestShellClient_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	bin := testutil.FakeBinary(t, "svn", `pwd`)
	client := NewShellClient(bin, dir)

	out, err := client.Log(context.Background(), "x", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), filepath.Base(strings.TrimSpace(out)))
}

func TestParseInfoRevision(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{
			name:  "single entry",
			input: `<info><entry kind="file" path="a.xml" revision="42"></entry></info>`,
			want:  42,
		},
		{
			name:    "no entry",
			input:   `<info></info>`,
			wantErr: true,
		},
		{
			name:    "non-numeric revision",
			input:   `<info><entry revision="HEAD"></entry></info>`,
			wantErr: true,
		},
		{
			name:    "not xml",
			input:   `Revision: 42`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInfoRevision([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRevision(t *testing.T) {
	rev, err := ParseRevision(" 1200\n")
	require.NoError(t, err)
	assert.Equal(t, 1200, rev)

	_, err = ParseRevision("")
	assert.Error(t, err)

	_, err = ParseRevision("-3")
	assert.Error(t, err)
}

func TestInsertFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		flags []string
		want  []string
	}{
		{
			name:  "after subcommand",
			args:  []string{"merge", "-r", "1:2", "url", "file"},
			flags: []string{"--non-interactive"},
			want:  []string{"merge", "--non-interactive", "-r", "1:2", "url", "file"},
		},
		{
			name:  "empty args",
			args:  []string{},
			flags: []string{"--non-interactive"},
			want:  []string{"--non-interactive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, insertFlags(tt.args, tt.flags...))
		})
	}
}
