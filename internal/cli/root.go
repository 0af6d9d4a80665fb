// Package cli wires the harvester command line to the run pipeline.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitOK     = 0
	ExitFatal  = 1
	ExitLocked = 2
)

// ExitError carries the process exit code for a failed run.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func fatal(format string, args ...any) error {
	return &ExitError{Code: ExitFatal, Err: fmt.Errorf(format, args...)}
}

// Options are the command line switches of one run.
type Options struct {
	ConfigPath     string
	ReposPath      string
	OnlyHarvest    bool
	OnlyExport     bool
	OnlyNewRecords bool
	ExportFilepath string
	ExportFormat   string
	Debug          bool
}

// NewRootCmd builds the harvester command. run is invoked with the parsed
// options.
func NewRootCmd(run func(ctx context.Context, opts Options) error) *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvest repository metadata and export it for indexing",
		Long: `harvester crawls the configured OAI-PMH, CKAN, MarkLogic and CSW
repositories into the metadata database, then exports the stored records
as gmeta or rifcs files.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.OnlyHarvest, "onlyharvest", false, "just harvest new items, do not export anything")
	f.BoolVar(&opts.OnlyExport, "onlyexport", false, "just export existing items, do not harvest anything")
	f.BoolVar(&opts.OnlyNewRecords, "only-new-records", false, "only export records changed since the last run")
	f.StringVar(&opts.ExportFilepath, "export-filepath", "", "the path to export the data to")
	f.StringVar(&opts.ExportFormat, "export-format", "", "the export format (gmeta or rifcs)")
	f.StringVar(&opts.ConfigPath, "config", "conf/harvester.yaml", "harvester settings file")
	f.StringVar(&opts.ReposPath, "repos", "conf/repos.json", "repository list")
	f.BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	cmd.MarkFlagsMutuallyExclusive("onlyharvest", "onlyexport")
	return cmd
}

// Execute runs the harvester with args and returns the process exit code.
func Execute(args []string, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd(func(ctx context.Context, opts Options) error {
		return NewRunner(opts).Run(ctx)
	})
	cmd.SetArgs(args)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(stderr, "harvester:", err)
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return ExitFatal
}
