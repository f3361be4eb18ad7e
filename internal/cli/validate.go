package cli

import (
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/botcsync/internal/store"
	"github.com/roach88/botcsync/internal/validate"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool             `json:"valid"`
	Characters int              `json:"characters"`
	Issues     []validate.Issue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the stored dataset for integrity issues",
		Long: `Validate characters.json in the data directory: duplicate ids, dangling or
asymmetric jinxes, night order range, empty required fields, and the
character schema. With --strict, fields the schema does not define are
reported too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "report fields unknown to the schema")
	return cmd
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, strict bool) error {
	f := newFormatter(cmd, rootOpts)
	cfg, err := rootOpts.config()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}

	st, err := store.OpenDir(cfg.DataDir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "open data directory", err)
	}
	entities, err := st.LoadCombined()
	if err != nil {
		code := ErrCodeLoadFailed
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return f.Fail(ExitCommandError, code, "read "+store.CombinedFile, err)
	}
	f.VerboseLog("Loaded %d character(s) from %s", len(entities), cfg.DataDir)

	schema, err := validate.NewSchema()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "load character schema", err)
	}
	issues := validate.Run(schema, entities, strict)

	res := ValidationResult{Valid: len(issues) == 0, Characters: len(entities), Issues: issues}
	if f.JSON() {
		if err := f.Success(res); err != nil {
			return err
		}
	} else {
		validate.WriteReport(f.Writer, issues, 10)
	}

	if !res.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}
