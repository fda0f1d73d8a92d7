package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanudai/Nuclear-SCADA/internal/config"
)

// ConfigCheck is the result of validating a config file.
type ConfigCheck struct {
	File       string `json:"file"`
	Valid      bool   `json:"valid"`
	TickPeriod string `json:"tick_period"`
	Journal    bool   `json:"journal"`
	NATS       bool   `json:"nats"`
	Influx     bool   `json:"influx"`
	Advisor    bool   `json:"advisor"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration files",
	}
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	return cmd
}

func newConfigValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a config file against the schema",
		Long: `Validate a YAML or CUE config file against the embedded schema
and the cross-field rules.

Exit codes:
  0 - The file is valid
  1 - The file violates the schema
  2 - The file cannot be read or parsed

Examples:
  scada config validate plant.yaml
  scada config validate plant.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(opts, args[0], cmd)
		},
	}
}

func runConfigValidate(opts *RootOptions, file string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if !fileExists(file) {
		return NewExitError(ExitCommandError, fmt.Sprintf("config file not found: %s", file))
	}

	cfg, err := config.Load(file)
	if err != nil {
		var verr *config.ValidationError
		code := ExitCommandError
		errCode := "E_CONFIG_UNREADABLE"
		if errors.As(err, &verr) {
			code = ExitFailure
			errCode = "E_INVALID_CONFIG"
		}
		if outErr := f.Error(errCode, err.Error(), map[string]string{"file": file}); outErr != nil {
			return outErr
		}
		return WrapExitError(code, "config validation failed", err)
	}

	if f.Format == "json" {
		return f.Success(ConfigCheck{
			File:       file,
			Valid:      true,
			TickPeriod: cfg.Simulation.TickPeriod.String(),
			Journal:    cfg.Journal.Path != "",
			NATS:       cfg.NATS.URL != "",
			Influx:     cfg.Influx.URL != "",
			Advisor:    cfg.Advisor.URL != "",
		})
	}
	fmt.Fprintf(f.Writer, "✓ %s is valid\n", file)
	f.VerboseLog("tick_period=%s manual_timeout=%s eccs_confirm_window=%s",
		cfg.Simulation.TickPeriod, cfg.Simulation.ManualTimeout, cfg.Simulation.ECCSConfirmWindow)
	return nil
}
