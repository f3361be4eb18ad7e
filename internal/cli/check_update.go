package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/botcsync/internal/manifest"
	"github.com/roach88/botcsync/internal/store"
)

// NewCheckUpdateCommand creates the check-update command.
func NewCheckUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var remote string

	cmd := &cobra.Command{
		Use:   "check-update",
		Short: "Compare the local manifest with a published one",
		Long: `Fetch a published manifest.json and compare its content hash with the
local manifest. A missing local manifest always reports an update.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckUpdate(cmd, rootOpts, remote)
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "URL of the published manifest.json")
	_ = cmd.MarkFlagRequired("remote")
	return cmd
}

func runCheckUpdate(cmd *cobra.Command, rootOpts *RootOptions, remote string) error {
	f := newFormatter(cmd, rootOpts)
	cfg, err := rootOpts.config()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}

	st, err := store.OpenDir(cfg.DataDir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "open data directory", err)
	}
	local, err := manifest.Read(st.FS(), manifest.FileName)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return f.Fail(ExitCommandError, ErrCodeLoadFailed, "read local manifest", err)
		}
		slog.Info("no local manifest", "dir", cfg.DataDir)
		local = nil
	}

	status, err := manifest.CheckUpdate(cmd.Context(), nil, local, remote)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNetwork, "check for update", err)
	}

	if f.JSON() {
		return f.Success(status)
	}
	if !status.UpdateAvailable {
		return f.Success(fmt.Sprintf("Up to date (version %s)", status.LocalVersion))
	}
	if status.LocalVersion == "" {
		return f.Success(fmt.Sprintf("Update available: version %s (no local data)", status.RemoteVersion))
	}
	return f.Success(fmt.Sprintf("Update available: %s -> %s", status.LocalVersion, status.RemoteVersion))
}
