package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/svnbook/booktool/internal/book"
	"github.com/svnbook/booktool/internal/svn"
	"github.com/svnbook/booktool/internal/sync"
)

var (
	syncAll     bool
	syncFiles   []string
	syncList    bool
	syncDryRun  bool
	syncStrict  bool
	syncJSON    bool
	syncNoColor bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [-a] [-l] [-f <filename(s)>] [--dry-run]",
	Short: "Report or merge upstream changes into the tracked book files",
	Long: `Sync compares each tracked file's last-synced revision (kept in an svn
property) with its working copy revision.

With -l it prints one status line per file: name, last-synced revision and the
share of paragraphs still in English, colored by how far behind the file is.

With -a or -f it merges the upstream changes since the last sync into each
selected file, saves the upstream diff next to the book directory as
<file>.diff, and advances the last-synced property. Conflicts are left in the
working copy.`,
	Args: noArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVarP(&syncAll, "all", "a", false, "synchronize all files")
	syncCmd.Flags().StringArrayVarP(&syncFiles, "file", "f", nil, "file(s) to synchronize, comma-separated (repeatable)")
	syncCmd.Flags().BoolVarP(&syncList, "list", "l", false, "list all files and the revisions they are synchronized with")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "run the merge in dry-run mode and keep the last-synced revisions")
	syncCmd.Flags().BoolVar(&syncStrict, "strict", false, "do not advance the last-synced revision of a file whose merge failed")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "print the -l report as JSON")
	syncCmd.Flags().BoolVar(&syncNoColor, "no-color", false, "disable colored -l output")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if !syncAll && !syncList && len(syncFiles) == 0 {
		return cmd.Help()
	}

	var selected []string
	switch {
	case syncList:
	case syncAll:
		selected = book.TrackedFiles
	default:
		var err error
		selected, err = book.ResolveSelection(strings.Join(syncFiles, ","))
		if err != nil {
			if errors.Is(err, book.ErrUntrackedFile) {
				return newUsageError(cmd, "Invalid syntax: %v", err)
			}
			return err
		}
		if len(selected) == 0 {
			return newUsageError(cmd, "Invalid syntax: no files selected")
		}
	}

	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	bookDir := book.ResolveBookDir(cfg.SVN.BookDir)
	logger.Debug("using book directory", "path", bookDir)

	svnClient := svn.NewShellClient(cfg.SVN.Binary, bookDir)
	out := cmd.OutOrStdout()
	engine := sync.NewEngine(cfg, svnClient, bookDir, out, logger, sync.Options{
		DryRun: syncDryRun,
		Strict: syncStrict,
	})

	if syncList {
		report, err := engine.Status(ctx)
		if err != nil {
			return err
		}
		if syncJSON {
			return sync.RenderJSON(out, report)
		}
		return sync.RenderText(out, report, !syncNoColor && colorEnabled(out))
	}

	if _, err := engine.Run(ctx, selected); err != nil {
		logger.Error("sync failed", "error", err)
		return err
	}
	return nil
}
