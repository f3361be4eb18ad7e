package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/botcsync/internal/manifest"
	"github.com/roach88/botcsync/internal/store"
)

// VerifyResult is the JSON payload of the verify command.
type VerifyResult struct {
	Valid      bool   `json:"valid"`
	Dir        string `json:"dir"`
	Recorded   string `json:"recorded"`
	Computed   string `json:"computed"`
	Characters int    `json:"characters"`
	Version    string `json:"version"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [dir]",
		Short: "Check a package's content hash",
		Long: `Recompute the content hash of characters.json and compare it with the
hash recorded in manifest.json. The directory defaults to the data directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runVerify(cmd, rootOpts, dir)
		},
	}
	return cmd
}

func runVerify(cmd *cobra.Command, rootOpts *RootOptions, dir string) error {
	f := newFormatter(cmd, rootOpts)
	if dir == "" {
		cfg, err := rootOpts.config()
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
		}
		dir = cfg.DataDir
	}

	st, err := store.OpenDir(dir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "open directory", err)
	}

	v, err := manifest.VerifyPackage(st.FS())
	if err != nil && !errors.Is(err, manifest.ErrHashMismatch) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "verify package", err)
	}

	res := VerifyResult{
		Valid:      err == nil,
		Dir:        dir,
		Recorded:   v.Manifest.ContentHash,
		Computed:   v.Computed,
		Characters: v.Characters,
		Version:    v.Manifest.Version,
	}

	if f.JSON() {
		if outErr := f.Success(res); outErr != nil {
			return outErr
		}
	} else if res.Valid {
		fmt.Fprintf(f.Writer, "✓ %s: %d characters, version %s, hash %s\n", dir, res.Characters, res.Version, res.Computed)
	} else {
		fmt.Fprintf(f.Writer, "✗ %s: hash mismatch\n  recorded %s\n  computed %s\n", dir, res.Recorded, res.Computed)
	}

	if !res.Valid {
		return WrapExitError(ExitFailure, "verification failed", err)
	}
	return nil
}
