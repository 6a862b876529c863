package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/svnbook/booktool/internal/book"
	"github.com/svnbook/booktool/internal/config"
	"github.com/svnbook/booktool/internal/svn"
)

// ErrMergeFailed is returned in strict mode when at least one merge failed
var ErrMergeFailed = errors.New("merge failed")

// Engine runs sync-status reports and synchronizations for the tracked files
type Engine struct {
	cfg     *config.Config
	svn     svn.Client
	logger  *slog.Logger
	out     io.Writer
	bookDir string
	dryRun  bool
	strict  bool
}

// Options controls a synchronization run
type Options struct {
	DryRun bool
	// Strict keeps the last-synced marker in place when the merge command
	// fails.
	Strict bool
}

// NewEngine creates a new sync engine. bookDir is the working copy holding
// the tracked files; svnClient must run in that directory. Progress and the
// svn log/merge output go to out.
func NewEngine(cfg *config.Config, svnClient svn.Client, bookDir string, out io.Writer, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		cfg:     cfg,
		svn:     svnClient,
		logger:  logger,
		out:     out,
		bookDir: bookDir,
		dryRun:  opts.DryRun,
		strict:  opts.Strict,
	}
}

// Run synchronizes each file in order. Without --strict a failed merge is
// logged and the marker is still advanced; the working copy is left for the
// operator to resolve.
func (e *Engine) Run(ctx context.Context, files []string) ([]FileResult, error) {
	e.logger.Info("starting sync",
		"upstream", e.cfg.SVN.UpstreamURL,
		"files", len(files),
		"dry_run", e.dryRun,
		"strict", e.strict)

	results := make([]FileResult, 0, len(files))
	var failed []string

	for _, name := range files {
		res, err := e.syncFile(ctx, name)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if res.MergeError != nil && e.strict {
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		return results, fmt.Errorf("%w: %s", ErrMergeFailed, strings.Join(failed, ", "))
	}

	e.logger.Info("sync completed", "files", len(results))
	return results, nil
}

func (e *Engine) syncFile(ctx context.Context, name string) (FileResult, error) {
	res := FileResult{File: name}

	last, err := e.lastSynced(ctx, name)
	if err != nil {
		return res, err
	}
	base, err := e.svn.Revision(ctx, name)
	if err != nil {
		return res, fmt.Errorf("failed to read base revision of %s: %w", name, err)
	}
	res.From, res.To = last, base

	fmt.Fprintln(e.out, strings.Repeat("#", 72))
	fmt.Fprintf(e.out, "Sync r%d:r%d of %s\n", last, base, name)

	if base < last {
		e.logger.Warn("base revision is older than last sync, skipping", "file", name, "last_synced", last, "base", base)
		return res, nil
	}

	source := e.cfg.UpstreamFileURL(name)
	diff, err := e.svn.Diff(ctx, source, last, base)
	if err != nil {
		return res, err
	}

	if diff != "" {
		res.Changed = true

		logOut, err := e.svn.Log(ctx, source, last, base)
		if err != nil {
			return res, err
		}
		fmt.Fprint(e.out, logOut)

		res.DiffPath = book.DiffPath(e.bookDir, name)
		if err := os.WriteFile(res.DiffPath, []byte(diff), 0644); err != nil {
			return res, fmt.Errorf("failed to write diff for %s: %w", name, err)
		}
		e.logger.Info("diff written", "file", name, "path", res.DiffPath)

		mergeOut, err := e.svn.Merge(ctx, source, last, base, name, e.dryRun)
		fmt.Fprint(e.out, mergeOut)
		if err != nil {
			res.MergeError = err
			e.logger.Warn("merge reported an error", "file", name, "error", err)
			if e.strict {
				return res, nil
			}
		}
	}

	if e.dryRun {
		e.logger.Info("[dry-run] would advance last-synced", "file", name, "from", last, "to", base)
		return res, nil
	}

	if err := e.svn.PropSet(ctx, e.cfg.SVN.Property, strconv.Itoa(base), name); err != nil {
		return res, err
	}
	res.Advanced = true
	e.logger.Info("last-synced advanced", "file", name, "from", last, "to", base)

	return res, nil
}

// lastSynced reads the last-synced marker of a tracked file
func (e *Engine) lastSynced(ctx context.Context, name string) (int, error) {
	val, err := e.svn.PropGet(ctx, e.cfg.SVN.Property, name)
	if err != nil {
		return 0, fmt.Errorf("failed to read last-synced revision of %s: %w", name, err)
	}
	rev, err := svn.ParseRevision(val)
	if err != nil {
		return 0, fmt.Errorf("%s property of %s: %w", e.cfg.SVN.Property, name, err)
	}
	return rev, nil
}
