package cli

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/history"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, rootOpts, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	return cmd
}

func runHistory(cmd *cobra.Command, rootOpts *RootOptions, limit int) error {
	f := newFormatter(cmd, rootOpts)
	cfg, err := rootOpts.config()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}
	if cfg.HistoryDB == "" {
		return f.Fail(ExitCommandError, ErrCodeConfig, "history is disabled (history_db is empty)", nil)
	}

	ledger, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "open history", err)
	}
	defer ledger.Close()

	runs, err := ledger.List(cmd.Context(), limit)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "list runs", err)
	}

	if f.JSON() {
		return f.Success(runs)
	}
	if len(runs) == 0 {
		return f.Success("No sync runs recorded")
	}

	t := table.NewWriter()
	t.SetOutputMirror(f.Writer)
	t.AppendHeader(table.Row{"Started", "Duration", "Characters", "Fetched", "Failed", "Healed", "Issues", "Version", "Hash"})
	for _, r := range runs {
		var fetched, failed, healed int
		for _, c := range entity.Categories {
			s := r.Stats[c]
			fetched += s.Fetched
			failed += s.Failed
			healed += s.Healed
		}
		hash := r.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		t.AppendRow(table.Row{
			r.Started.Format(time.RFC3339),
			r.Finished.Sub(r.Started).Round(time.Second),
			r.Characters, fetched, failed, healed, r.Issues, r.Version, hash,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}
