package main

import (
	"github.com/spf13/cobra"

	"github.com/svnbook/booktool/internal/adsense"
)

var adsenseCmd = &cobra.Command{
	Use:   "adsense BOOK-DIR",
	Short: "Add the advertisement block to the generated HTML pages",
	Long: `Adsense inserts the advertisement markup right after the <body> tag of every
.html page in BOOK-DIR and appends the matching rules to its stylesheet.
Pages that already carry the block are left alone.`,
	RunE: runAdSense,
}

func init() {
	rootCmd.AddCommand(adsenseCmd)
}

func runAdSense(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError(cmd, "expected exactly one BOOK-DIR argument")
	}

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	injector := adsense.NewInjector(cfg.AdSense.Client, cfg.AdSense.Stylesheet, logger)
	_, err = injector.Run(cmd.OutOrStdout(), args[0])
	return err
}
