package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/botcsync/internal/manifest"
	"github.com/roach88/botcsync/internal/store"
)

// NewPackageCommand creates the package command.
func NewPackageCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Copy the verified dataset into a distribution directory",
		Long: `Verify characters.json against manifest.json in the data directory and copy
both into the distribution directory. Nothing is copied when the content hash
does not match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackage(cmd, rootOpts, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "distribution directory (default from config)")
	return cmd
}

func runPackage(cmd *cobra.Command, rootOpts *RootOptions, out string) error {
	f := newFormatter(cmd, rootOpts)
	cfg, err := rootOpts.config()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}
	if out == "" {
		out = cfg.DistDir
	}

	src, err := store.OpenDir(cfg.DataDir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "open data directory", err)
	}
	dst, err := store.OpenDir(out)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "open distribution directory", err)
	}

	m, err := manifest.Package(src.FS(), dst.FS())
	if errors.Is(err, manifest.ErrHashMismatch) {
		return f.Fail(ExitFailure, ErrCodeHashMismatch, "refusing to package", err)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "package dataset", err)
	}

	if f.JSON() {
		return f.Success(m)
	}
	return f.Success(fmt.Sprintf("Packaged %d characters into %s (version %s, hash %s)",
		m.TotalCharacters, out, m.Version, m.ContentHash))
}
