package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flowcanvas/internal/config"
)

// ValidationProblem is one reason a configuration was rejected.
type ValidationProblem struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Problems []ValidationProblem `json:"problems,omitempty"`
	Summary  *ConfigSummary      `json:"summary,omitempty"`
}

// ConfigSummary is the effective configuration after defaults.
type ConfigSummary struct {
	Transport string  `json:"transport"`
	URL       string  `json:"url,omitempty"`
	Project   string  `json:"project"`
	Workflow  string  `json:"workflow"`
	Mount     string  `json:"mount"`
	Journal   string  `json:"journal,omitempty"`
	Reconnect string  `json:"reconnect"`
	Grid      string  `json:"grid"`
	Zoom      string  `json:"zoom"`
	NodeSize  float64 `json:"node_size"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a client configuration file",
		Long: `Validate a YAML or CUE client configuration and print the effective
settings after defaults are applied.

Exit codes:
  0 - Configuration is valid
  1 - Configuration was read but is invalid
  2 - Command error (file not found, unsupported extension)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Loading %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		var ce *config.ConfigError
		if errors.As(err, &ce) && (ce.Code == config.ErrCodeNotFound || ce.Code == config.ErrCodeFormat) {
			_ = formatter.Error(string(ce.Code), ce.Message, nil)
			return WrapExitError(ExitCommandError, "cannot read config", err)
		}
		return outputValidationProblems(formatter, configProblems(err))
	}

	summary := summarizeConfig(cfg)
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Summary: &summary})
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✓ Configuration valid")
	fmt.Fprintf(w, "  Transport: %s", summary.Transport)
	if summary.URL != "" {
		fmt.Fprintf(w, " (%s)", summary.URL)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Workflow: %s/%s mounted at %q\n", summary.Project, summary.Workflow, summary.Mount)
	if summary.Journal != "" {
		fmt.Fprintf(w, "  Journal: %s\n", summary.Journal)
	}
	if opts.Verbose {
		fmt.Fprintf(w, "  Reconnect: %s\n", summary.Reconnect)
		fmt.Fprintf(w, "  Grid: %s, zoom: %s, node size: %v\n", summary.Grid, summary.Zoom, summary.NodeSize)
	}
	return nil
}

func summarizeConfig(cfg config.Config) ConfigSummary {
	cv := cfg.Canvas
	return ConfigSummary{
		Transport: cfg.Transport.Kind,
		URL:       cfg.Transport.URL,
		Project:   cfg.Project,
		Workflow:  cfg.Workflow,
		Mount:     cfg.Mount,
		Journal:   cfg.Journal,
		Reconnect: fmt.Sprintf("%s..%s", cfg.Transport.Reconnect.Initial, cfg.Transport.Reconnect.Max),
		Grid:      fmt.Sprintf("%vx%v", cv.Grid.X, cv.Grid.Y),
		Zoom:      fmt.Sprintf("[%v, %v]", cv.Zoom.Min, cv.Zoom.Max),
		NodeSize:  cv.NodeSize,
	}
}

// configProblems flattens a joined validation error into its parts.
func configProblems(err error) []ValidationProblem {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []ValidationProblem
		for _, e := range joined.Unwrap() {
			out = append(out, configProblems(e)...)
		}
		return out
	}
	var ce *config.ConfigError
	if errors.As(err, &ce) {
		msg := ce.Message
		if ce.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, ce.Err)
		}
		return []ValidationProblem{{Code: string(ce.Code), Field: ce.Field, Message: msg}}
	}
	return []ValidationProblem{{Code: CodeConfig, Message: err.Error()}}
}

// outputValidationProblems outputs every problem and fails with exit code 1.
func outputValidationProblems(formatter *OutputFormatter, problems []ValidationProblem) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(problems)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Problems: problems},
			Error:  &CLIError{Code: problems[0].Code, Message: problems[0].Message},
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, p := range problems {
		if p.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", p.Code, p.Field, p.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", p.Code, p.Message)
		}
	}
	return failure
}
