package dist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/svnbook/booktool/internal/build"
	"github.com/svnbook/booktool/internal/config"
)

var (
	// ErrNoTargets is returned when no output format was selected
	ErrNoTargets = errors.New("no targets specified")
	// ErrInvalidName is returned when the archive name is not a single path component
	ErrInvalidName = errors.New("name is not a single path component")
	// ErrNotSourceDir is returned when the working directory is not the book source root
	ErrNotSourceDir = errors.New("please run this from the Subversion book source directory")
	// ErrArchiveMissing is returned when the build finished without producing the archive
	ErrArchiveMissing = errors.New("it appears the tarball was not created")
)

// Formats selects the distribution formats to build
type Formats struct {
	HTML          bool
	HTMLChunk     bool
	HTMLArch      bool
	HTMLChunkArch bool
	PDF           bool
}

// Targets maps the selected formats to build targets, in a fixed order
func (f Formats) Targets() []string {
	var targets []string
	if f.HTML {
		targets = append(targets, "install-html")
	}
	if f.HTMLChunk {
		targets = append(targets, "install-html-chunk")
	}
	if f.HTMLArch {
		targets = append(targets, "install-html-arch")
	}
	if f.HTMLChunkArch {
		targets = append(targets, "install-html-chunk-arch")
	}
	if f.PDF {
		targets = append(targets, "install-pdf")
	}
	return targets
}

// Packager builds the book and packs the output into <name>.tar.gz
type Packager struct {
	cfg     *config.Config
	builder build.Builder
	dir     string
	logger  *slog.Logger
}

// NewPackager creates a packager working in the book source root dir
func NewPackager(cfg *config.Config, builder build.Builder, dir string, logger *slog.Logger) *Packager {
	return &Packager{
		cfg:     cfg,
		builder: builder,
		dir:     dir,
		logger:  logger,
	}
}

// ArchivePath returns the path of the archive for name
func (p *Packager) ArchivePath(name string) string {
	return filepath.Join(p.dir, name+".tar.gz")
}

// Package builds targets and writes <name>.tar.gz into the source root.
// The staging directories are removed on every return path.
func (p *Packager) Package(ctx context.Context, name string, targets []string) (string, error) {
	if !config.IsSingleComponent(name) || p.isReserved(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(targets) == 0 {
		return "", ErrNoTargets
	}
	if err := p.checkSourceDir(); err != nil {
		return "", err
	}
	if err := p.builder.Available(); err != nil {
		return "", err
	}

	archive := p.ArchivePath(name)
	if err := os.Remove(archive); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove stale archive: %w", err)
	}

	if err := p.buildAndPack(ctx, name, targets, archive); err != nil {
		return "", err
	}

	if _, err := os.Stat(archive); err != nil {
		return "", ErrArchiveMissing
	}

	p.logger.Info("archive created", "path", archive)
	return archive, nil
}

func (p *Packager) buildAndPack(ctx context.Context, name string, targets []string, archive string) error {
	stageDir := filepath.Join(p.dir, name)
	tmpDir := filepath.Join(p.dir, p.cfg.Dist.TmpDir)

	cleanup := func() {
		for _, dir := range []string{stageDir, tmpDir} {
			if err := os.RemoveAll(dir); err != nil {
				p.logger.Warn("failed to remove temporary directory", "path", dir, "error", err)
			}
		}
	}
	cleanup()
	defer cleanup()

	if err := os.Mkdir(tmpDir, 0755); err != nil {
		return fmt.Errorf("failed to create temporary directory: %w", err)
	}

	absTmp, err := filepath.Abs(tmpDir)
	if err != nil {
		return err
	}

	// The build outcome is judged by the presence of its output below.
	if err := p.builder.Build(ctx, absTmp, targets); err != nil {
		p.logger.Warn("build reported an error", "error", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	output := filepath.Join(tmpDir, filepath.FromSlash(p.cfg.Dist.OutputSubdir))
	info, err := os.Stat(output)
	if err != nil || !info.IsDir() {
		p.logger.Warn("build output not found", "path", output)
		return nil
	}

	if err := os.Rename(output, stageDir); err != nil {
		return fmt.Errorf("failed to move build output: %w", err)
	}

	p.logger.Info("creating archive", "path", archive, "root", name)
	if err := writeTarGz(archive, p.dir, name, p.logger); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

func (p *Packager) checkSourceDir() error {
	for _, required := range []string{"book", "Makefile"} {
		if _, err := os.Stat(filepath.Join(p.dir, required)); err != nil {
			return ErrNotSourceDir
		}
	}
	return nil
}

// isReserved reports whether name would clash with a directory the staging
// cleanup removes or the source layout needs.
func (p *Packager) isReserved(name string) bool {
	switch name {
	case "book", "Makefile", p.cfg.Dist.TmpDir:
		return true
	}
	return false
}
