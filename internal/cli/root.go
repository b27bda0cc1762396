package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fssbcheck/internal/harness"
	"github.com/roach88/fssbcheck/internal/report"
	"github.com/roach88/fssbcheck/internal/sandbox"
)

// Environment variables read for flag defaults.
const (
	EnvRoot      = "FSSBCHECK_ROOT"
	EnvScenarios = "FSSBCHECK_SCENARIOS"
	EnvDebug     = "FSSBCHECK_DEBUG"
)

// RootOptions holds the command's flags.
type RootOptions struct {
	Root      string
	Prefix    string
	Scenarios string
	Format    string // "json" | "text", for --list
	NoColor   bool
	Verbose   bool
	List      bool

	// Registry replaces the built-in test cases (for testing). Scenarios
	// are still added to it.
	Registry *harness.Registry

	// RunID overrides the generated run ID (for testing).
	RunID string
}

// ValidFormats defines the allowed --list output formats.
var ValidFormats = []string{"text", "json"}

const usageText = `Usage: fssbcheck [flags] <exercise|verify> <test>

Runs one phase of a sandbox test case. Run the exercise phase under fssb,
then the verify phase without it:

  fssb -- fssbcheck exercise save_empty_file
  fssbcheck verify save_empty_file

Flags:
      --root DIR        scratch root holding <prefix>-<n> instances (env FSSBCHECK_ROOT, default /tmp)
      --prefix NAME     sandbox instance name prefix (default fssb)
      --scenarios DIR   also load YAML test scenarios from DIR (env FSSBCHECK_SCENARIOS)
      --list            print the registered tests and exit
      --format FORMAT   --list output format: text or json (default text)
      --no-color        plain status lines
  -v, --verbose         debug logging on stderr (env FSSBCHECK_DEBUG)
  -h, --help            show this help

Exit codes:
  0  phase completed; failed assertions are reported, not counted
  1  the phase behavior returned an error
  2  usage error, invalid phase, unknown test, no sandbox, bad scenario file
`

// NewRootCommand creates the fssbcheck command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fssbcheck [flags] <exercise|verify> <test>",
		Short: "Black-box checks for the fssb file-system sandbox",
		Long: `Black-box checks for the fssb file-system sandbox.

Each test case has an exercise phase, which performs file operations while
running under fssb, and a verify phase, which runs afterwards without the
sandbox and inspects the newest fssb-<n> directory and its file-map.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhase(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Root, "root", envString(EnvRoot, sandbox.DefaultRoot), "scratch root holding sandbox instances")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", sandbox.DefaultPrefix, "sandbox instance name prefix")
	cmd.Flags().StringVar(&opts.Scenarios, "scenarios", envString(EnvScenarios, ""), "directory of YAML test scenarios")
	cmd.Flags().BoolVar(&opts.List, "list", false, "print the registered tests and exit")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "--list output format (json|text)")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "plain status lines")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", envBool(EnvDebug), "debug logging on stderr")

	cmd.SetUsageFunc(func(c *cobra.Command) error {
		_, err := fmt.Fprint(c.OutOrStdout(), usageText)
		return err
	})
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprint(c.OutOrStdout(), usageText)
		return WrapExitError(ExitCommandError, "invalid usage", err)
	})

	return cmd
}

// Execute runs the command with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	// cobra reads os.Args when given a nil slice.
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "fssbcheck: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

func runPhase(cmd *cobra.Command, opts *RootOptions, args []string) error {
	stdout := cmd.OutOrStdout()

	runID := opts.RunID
	if runID == "" {
		runID = newRunID()
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose, runID)

	if opts.List {
		reg, err := buildRegistry(opts, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load test cases", err)
		}
		return listTests(stdout, opts.Format, reg, runID)
	}

	// Configuration is checked in order, and the phase before anything
	// touches the filesystem.
	if len(args) < 2 {
		fmt.Fprint(stdout, usageText)
		return WrapExitError(ExitCommandError, "invalid usage", &UsageError{Args: args})
	}
	if len(args) > 2 {
		logger.Warn("ignoring extra arguments", "args", args[2:])
	}

	phase, err := harness.ParsePhase(args[0])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid phase", err)
	}
	testName := args[1]

	reg, err := buildRegistry(opts, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load test cases", err)
	}

	logger.Debug("dispatching",
		"phase", phase,
		"test", testName,
		"root", opts.Root,
		"prefix", opts.Prefix)

	reporter := report.New(stdout, report.NewPalette(stdout, !opts.NoColor))
	locator := sandbox.NewLocator(opts.Root, opts.Prefix, logger)
	runner := harness.NewRunner(reg, locator, reporter, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return exitErrorFor(runner.Run(ctx, phase, testName))
}

// buildRegistry registers the built-in cases and any scenario files, then
// freezes the registry.
func buildRegistry(opts *RootOptions, logger *slog.Logger) (*harness.Registry, error) {
	reg := opts.Registry
	if reg == nil {
		reg = harness.NewRegistry()
		if err := harness.RegisterBuiltins(reg); err != nil {
			return nil, err
		}
	}

	if opts.Scenarios != "" {
		scenarios, err := harness.LoadScenarios(opts.Scenarios)
		if err != nil {
			return nil, err
		}
		if err := harness.RegisterScenarios(reg, scenarios); err != nil {
			return nil, err
		}
		logger.Debug("loaded scenarios", "dir", opts.Scenarios, "count", len(scenarios))
	}

	reg.Freeze()
	return reg, nil
}

func listTests(w io.Writer, format string, reg *harness.Registry, runID string) error {
	cases := reg.Cases()
	listing := make([]TestListing, 0, len(cases))
	for _, tc := range cases {
		listing = append(listing, TestListing{
			Name:        tc.Name,
			Description: tc.Description,
			Source:      tc.Source,
		})
	}
	formatter := &OutputFormatter{Format: format, Writer: w}
	if err := formatter.List(listing, runID); err != nil {
		return WrapExitError(ExitFailure, "failed to write test list", err)
	}
	return nil
}

// exitErrorFor maps runner errors to exit codes: configuration problems
// exit 2, errors raised by the behavior exit 1.
func exitErrorFor(err error) error {
	if err == nil {
		return nil
	}

	var (
		phaseErr   *harness.PhaseError
		unknownErr *harness.UnknownTestError
		invalidErr *harness.InvalidPhaseError
	)
	switch {
	case errors.As(err, &phaseErr):
		return WrapExitError(ExitFailure, "phase failed", err)
	case errors.As(err, &unknownErr):
		return WrapExitError(ExitCommandError, "unknown test", err)
	case errors.As(err, &invalidErr):
		return WrapExitError(ExitCommandError, "invalid phase", err)
	case errors.Is(err, sandbox.ErrNoSandboxFound):
		return WrapExitError(ExitCommandError, "no sandbox instance", err)
	default:
		return WrapExitError(ExitCommandError, "cannot run phase", err)
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
