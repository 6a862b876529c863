package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/svnbook/booktool/internal/build"
	"github.com/svnbook/booktool/internal/config"
	"github.com/svnbook/booktool/internal/dist"
)

var (
	distFormats dist.Formats
	distName    string
)

var distCmd = &cobra.Command{
	Use:   "dist OPTIONS",
	Short: "Build the book and pack it into <name>.tar.gz",
	Long: `Dist runs the book build with the selected install targets into a temporary
DESTDIR, moves the installed book to <name>/ and packs it as <name>.tar.gz.

Run it from the book source directory (the one holding book/ and Makefile).
Temporary directories are removed whether or not the build succeeds.`,
	Args: noArgs,
	RunE: runDist,
}

func init() {
	distCmd.Flags().BoolVar(&distFormats.HTML, "html", false, "make the single-page HTML book")
	distCmd.Flags().BoolVar(&distFormats.HTMLChunk, "html-chunk", false, "make the chunked HTML book")
	distCmd.Flags().BoolVar(&distFormats.HTMLArch, "html-arch", false, "make the single-page HTML book (in an archive)")
	distCmd.Flags().BoolVar(&distFormats.HTMLChunkArch, "html-chunk-arch", false, "make the chunked HTML book (in an archive)")
	distCmd.Flags().BoolVar(&distFormats.PDF, "pdf", false, "make the PDF book")
	distCmd.Flags().StringVar(&distName, "name", "", "base name of the tarball and its top-level directory (default from config, svnbook)")

	rootCmd.AddCommand(distCmd)
}

func runDist(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	name := distName
	if name == "" {
		name = cfg.Dist.DefaultName
	}
	if !config.IsSingleComponent(name) {
		return newUsageError(cmd, "Name %q is not a single path component", name)
	}

	targets := distFormats.Targets()
	if len(targets) == 0 {
		return newUsageError(cmd, "No targets specified.")
	}

	builder := build.NewMakeClient(cfg.Dist.BuildCommand, ".", cfg.BuildEnviron(), logger)
	packager := dist.NewPackager(cfg, builder, ".", logger)

	if _, err := packager.Package(ctx, name, targets); err != nil {
		if errors.Is(err, dist.ErrInvalidName) {
			return newUsageError(cmd, "%v", err)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Tarball %s.tar.gz created.  Enjoy!\n", name)
	return nil
}
