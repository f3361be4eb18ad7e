package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/botcsync/internal/engine"
	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/history"
	"github.com/roach88/botcsync/internal/store"
	"github.com/roach88/botcsync/internal/validate"
	"github.com/roach88/botcsync/internal/wiki"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	Input     string
	Reminders bool
	Flavor    bool
	Force     bool
	DryRun    bool
	Strict    bool
	NoHistory bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge a fresh scrape into the dataset",
		Long: `Merge freshly scraped character records into the stored dataset.

Reminder tokens and flavor text are fetched from the wiki only for the
categories enabled with --reminders and --flavor, and only where the cached
value is missing, corrupt or stale. Disabled categories keep their cached
values. The combined file and manifest are rewritten atomically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "scraped characters JSON file (- for stdin)")
	cmd.Flags().BoolVar(&opts.Reminders, "reminders", false, "fetch reminder tokens")
	cmd.Flags().BoolVar(&opts.Flavor, "flavor", false, "fetch flavor text")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "fetch enabled categories for every character")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "merge without writing anything")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "report fields unknown to the schema")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record the run in the history ledger")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runSync(cmd *cobra.Command, rootOpts *RootOptions, opts *SyncOptions) error {
	f := newFormatter(cmd, rootOpts)
	cfg, err := rootOpts.config()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}

	scraped, err := readScrape(cmd, opts.Input)
	if err != nil {
		code := ErrCodeLoadFailed
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return f.Fail(ExitCommandError, code, "read scraped input", err)
	}
	f.VerboseLog("Read %d scraped character(s) from %s", len(scraped), opts.Input)

	st, err := store.OpenDir(cfg.DataDir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "open data directory", err)
	}

	var categories []entity.AuxCategory
	if opts.Reminders {
		categories = append(categories, entity.Reminders)
	}
	if opts.Flavor {
		categories = append(categories, entity.Flavor)
	}

	client, err := wiki.New(cfg.WikiConfig())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "create wiki client", err)
	}
	defer client.Close()

	schema, err := validate.NewSchema()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "load character schema", err)
	}

	engineOpts := []engine.Option{
		engine.WithDispatch(cfg.Fetch.Concurrency, cfg.Fetch.BatchDelay),
		engine.WithSchema(schema),
		engine.WithSource(cfg.Source),
	}
	if cfg.HistoryDB != "" && !opts.DryRun && !opts.NoHistory {
		ledger, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "open history", err)
		}
		defer func() {
			if closeErr := ledger.Close(); closeErr != nil {
				slog.Error("error closing history", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithRecorder(ledger))
	}

	eng := engine.New(st, client, engineOpts...)
	report, err := eng.Run(cmd.Context(), scraped, engine.RunOptions{
		Categories: categories,
		Force:      opts.Force,
		DryRun:     opts.DryRun,
		Strict:     opts.Strict,
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSyncAborted, "sync aborted", err)
	}

	if f.JSON() {
		return f.Success(report)
	}
	writeSyncReport(f.Writer, report)
	return nil
}

func readScrape(cmd *cobra.Command, path string) ([]*entity.Entity, error) {
	if path == "-" {
		return entity.DecodeScraped(cmd.InOrStdin())
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return entity.DecodeScraped(file)
}

func writeSyncReport(w io.Writer, r *engine.Report) {
	if r.DryRun {
		fmt.Fprintln(w, "Dry run: nothing written")
	}
	fmt.Fprintf(w, "Characters: %d (previous snapshot: %d)\n", r.Characters, r.Previous)
	for _, c := range entity.Categories {
		s := r.Stats[c]
		fmt.Fprintf(w, "%-10s fetched %d, preserved %d, skipped %d, failed %d, healed %d\n",
			c+":", s.Fetched, s.Preserved, s.Skipped, s.Failed, s.Healed)
	}
	if r.Manifest != nil {
		fmt.Fprintf(w, "Manifest: version %s, hash %s\n", r.Manifest.Version, r.Manifest.ContentHash)
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
	validate.WriteReport(w, r.Issues, 10)
}
