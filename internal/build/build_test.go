package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svnbook/booktool/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMakeClient_Build(t *testing.T) {
	dir := t.TempDir()
	bin, logPath := testutil.RecordingBinary(t, "make", `
mkdir -p "$DESTDIR/usr/share/doc"
echo "$FOP_OPTS" > "$DESTDIR/usr/share/doc/fop_opts"
`)
	client := NewMakeClient(bin, dir, []string{"FOP_OPTS=-Xms100m -Xmx200m"}, testLogger())

	require.NoError(t, client.Available())

	destDir := filepath.Join(dir, "__TMP__")
	err := client.Build(context.Background(), destDir, []string{"install-html", "install-pdf"})
	require.NoError(t, err)

	assert.Equal(t, []string{"clean install-html install-pdf"}, testutil.Invocations(t, logPath))

	data, err := os.ReadFile(filepath.Join(destDir, "usr", "share", "doc", "fop_opts"))
	require.NoError(t, err)
	assert.Equal(t, "-Xms100m -Xmx200m\n", string(data))
}

func TestMakeClient_BuildFailure(t *testing.T) {
	bin := testutil.FakeBinary(t, "make", `echo "make: *** No rule to make target 'install-pdf'" >&2; exit 2`)
	client := NewMakeClient(bin, t.TempDir(), nil, testLogger())

	err := client.Build(context.Background(), t.TempDir(), []string{"install-pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No rule to make target")
}

func TestMakeClient_Unavailable(t *testing.T) {
	client := NewMakeClient(filepath.Join(t.TempDir(), "no-such-make"), "", nil, testLogger())
	assert.Error(t, client.Available())
}

func TestLastLines(t *testing.T) {
	in := strings.Repeat("x\n", 30) + "last\n"
	got := lastLines(in, 3)
	assert.Equal(t, "x\nx\nlast", got)
	assert.Equal(t, "only", lastLines("only", 5))
}
