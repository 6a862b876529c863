package main

import (
	"github.com/spf13/cobra"

	"github.com/svnbook/booktool/internal/idsub"
)

var (
	idsubDryRun bool
	idsubDiff   bool
)

var idsubCmd = &cobra.Command{
	Use:   "idsub MAPFILE [FILE...]",
	Short: "Rewrite id and linkend attributes from a rename table",
	Long: `Idsub loads a rename table of "old<TAB>new" lines and rewrites every
id="..." and linkend="..." attribute in the given files. A file is replaced
only when something changed. An identifier missing from the table stops the
run.`,
	RunE: runIDSub,
}

func init() {
	idsubCmd.Flags().BoolVar(&idsubDryRun, "dry-run", false, "count substitutions without modifying files")
	idsubCmd.Flags().BoolVar(&idsubDiff, "diff", false, "print a unified diff of every changed file")

	rootCmd.AddCommand(idsubCmd)
}

func runIDSub(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return newUsageError(cmd, "missing rename table")
	}

	logger := setupLogger()

	if _, err := loadConfig(logger); err != nil {
		return err
	}

	table, err := idsub.LoadTable(args[0])
	if err != nil {
		return err
	}
	logger.Debug("rename table loaded", "path", args[0], "entries", len(table))

	remapper := idsub.NewRemapper(table, logger, idsub.Options{
		DryRun: idsubDryRun,
		Diff:   idsubDiff,
	})
	_, err = remapper.RemapFiles(cmd.OutOrStdout(), args[1:])
	return err
}
