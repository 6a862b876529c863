package dist

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svnbook/booktool/internal/config"
	"github.com/svnbook/booktool/internal/testutil"
)

// mockBuilder implements build.Builder for testing.
type mockBuilder struct {
	availableErr error
	buildErr     error
	build        func(destDir string)
	called       bool
	destDir      string
	targets      []string
}

func (m *mockBuilder) Available() error {
	return m.availableErr
}

func (m *mockBuilder) Build(_ context.Context, destDir string, targets []string) error {
	m.called = true
	m.destDir = destDir
	m.targets = targets
	if m.build != nil {
		m.build(destDir)
	}
	return m.buildErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newSourceDir creates a directory that looks like the book source root.
func newSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"Makefile":      "all:\n",
		"book/book.xml": "<book/>\n",
	})
	return dir
}

// installBook simulates `make install-html` into destDir.
func installBook(t *testing.T) func(destDir string) {
	return func(destDir string) {
		testutil.WriteFiles(t, filepath.Join(destDir, "usr", "share", "doc", "subversion", "book"), map[string]string{
			"svn-book.html":     "<html><body></body></html>\n",
			"images/logo.png":   "png",
			"svn-book-html.tar": "nested",
		})
	}
}

func listArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(data)
	}
	return entries
}

func assertNoStaging(t *testing.T, dir, name string) {
	t.Helper()
	for _, d := range []string{name, "__SVNBOOK_TMP__"} {
		_, err := os.Stat(filepath.Join(dir, d))
		assert.True(t, os.IsNotExist(err), "%s must be removed", d)
	}
}

func TestFormatsTargets(t *testing.T) {
	tests := []struct {
		name    string
		formats Formats
		want    []string
	}{
		{name: "none", formats: Formats{}, want: nil},
		{name: "html", formats: Formats{HTML: true}, want: []string{"install-html"}},
		{
			name:    "all",
			formats: Formats{PDF: true, HTMLChunkArch: true, HTMLArch: true, HTMLChunk: true, HTML: true},
			want:    []string{"install-html", "install-html-chunk", "install-html-arch", "install-html-chunk-arch", "install-pdf"},
		},
		{name: "pdf and chunk", formats: Formats{PDF: true, HTMLChunk: true}, want: []string{"install-html-chunk", "install-pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.formats.Targets())
		})
	}
}

func TestPackage_Success(t *testing.T) {
	dir := newSourceDir(t)
	builder := &mockBuilder{build: installBook(t)}
	p := NewPackager(config.Default(), builder, dir, testLogger())

	archive, err := p.Package(context.Background(), "svnbook-1.4", []string{"install-html"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "svnbook-1.4.tar.gz"), archive)

	assert.True(t, builder.called)
	assert.Equal(t, []string{"install-html"}, builder.targets)
	assert.True(t, filepath.IsAbs(builder.destDir))

	entries := listArchive(t, archive)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"svnbook-1.4/",
		"svnbook-1.4/images/",
		"svnbook-1.4/images/logo.png",
		"svnbook-1.4/svn-book-html.tar",
		"svnbook-1.4/svn-book.html",
	}, names)
	assert.Equal(t, "<html><body></body></html>\n", entries["svnbook-1.4/svn-book.html"])

	matches, err := filepath.Glob(filepath.Join(dir, "*.tar.gz"))
	require.NoError(t, err)
	assert.Len(t, matches, 1, "exactly one archive")
	assertNoStaging(t, dir, "svnbook-1.4")
}

func TestPackage_BuildErrorButOutputPresent(t *testing.T) {
	dir := newSourceDir(t)
	builder := &mockBuilder{build: installBook(t), buildErr: errors.New("fop warnings")}
	p := NewPackager(config.Default(), builder, dir, testLogger())

	_, err := p.Package(context.Background(), "svnbook", []string{"install-pdf"})
	require.NoError(t, err)
	assertNoStaging(t, dir, "svnbook")
}

func TestPackage_NoOutput(t *testing.T) {
	dir := newSourceDir(t)
	builder := &mockBuilder{buildErr: errors.New("exit status 2")}
	p := NewPackager(config.Default(), builder, dir, testLogger())

	_, err := p.Package(context.Background(), "svnbook", []string{"install-html"})
	require.ErrorIs(t, err, ErrArchiveMissing)
	assertNoStaging(t, dir, "svnbook")

	_, statErr := os.Stat(filepath.Join(dir, "svnbook.tar.gz"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPackage_StaleArchiveRemoved(t *testing.T) {
	dir := newSourceDir(t)
	stale := filepath.Join(dir, "svnbook.tar.gz")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	p := NewPackager(config.Default(), &mockBuilder{}, dir, testLogger())
	_, err := p.Package(context.Background(), "svnbook", []string{"install-html"})
	require.ErrorIs(t, err, ErrArchiveMissing)
}

func TestPackage_LeftoverStagingCleaned(t *testing.T) {
	dir := newSourceDir(t)
	testutil.WriteFiles(t, dir, map[string]string{
		"svnbook/old.html":          "old",
		"__SVNBOOK_TMP__/junk.html": "junk",
	})

	p := NewPackager(config.Default(), &mockBuilder{build: installBook(t)}, dir, testLogger())
	archive, err := p.Package(context.Background(), "svnbook", []string{"install-html"})
	require.NoError(t, err)

	entries := listArchive(t, archive)
	assert.NotContains(t, entries, "svnbook/old.html")
	assertNoStaging(t, dir, "svnbook")
}

func TestPackage_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		pkgName string
		targets []string
		builder *mockBuilder
		wantErr error
	}{
		{
			name:    "no targets",
			setup:   newSourceDir,
			pkgName: "svnbook",
			builder: &mockBuilder{},
			wantErr: ErrNoTargets,
		},
		{
			name:    "name with directory",
			setup:   newSourceDir,
			pkgName: "out/svnbook",
			targets: []string{"install-html"},
			builder: &mockBuilder{},
			wantErr: ErrInvalidName,
		},
		{
			name:    "name clashes with book dir",
			setup:   newSourceDir,
			pkgName: "book",
			targets: []string{"install-html"},
			builder: &mockBuilder{},
			wantErr: ErrInvalidName,
		},
		{
			name:    "missing Makefile",
			setup:   func(t *testing.T) string { d := t.TempDir(); require.NoError(t, os.Mkdir(filepath.Join(d, "book"), 0755)); return d },
			pkgName: "svnbook",
			targets: []string{"install-html"},
			builder: &mockBuilder{},
			wantErr: ErrNotSourceDir,
		},
		{
			name:    "missing book dir",
			setup:   func(t *testing.T) string { d := t.TempDir(); require.NoError(t, os.WriteFile(filepath.Join(d, "Makefile"), nil, 0644)); return d },
			pkgName: "svnbook",
			targets: []string{"install-html"},
			builder: &mockBuilder{},
			wantErr: ErrNotSourceDir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			p := NewPackager(config.Default(), tt.builder, dir, testLogger())
			_, err := p.Package(context.Background(), tt.pkgName, tt.targets)
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, tt.builder.called, "build must not run when preconditions fail")
		})
	}
}

func TestPackage_BuilderUnavailable(t *testing.T) {
	dir := newSourceDir(t)
	builder := &mockBuilder{availableErr: errors.New("make not found")}
	p := NewPackager(config.Default(), builder, dir, testLogger())

	_, err := p.Package(context.Background(), "svnbook", []string{"install-html"})
	require.Error(t, err)
	assert.False(t, builder.called)
}

func TestPackage_Cancelled(t *testing.T) {
	dir := newSourceDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	builder := &mockBuilder{build: func(string) { cancel() }}
	p := NewPackager(config.Default(), builder, dir, testLogger())

	_, err := p.Package(ctx, "svnbook", []string{"install-html"})
	require.ErrorIs(t, err, context.Canceled)
	assertNoStaging(t, dir, "svnbook")
}
