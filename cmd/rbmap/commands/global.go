// Package commands implements the rbmap CLI subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/pkg/config"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/version"
)

const (
	flagConfig  = "config"
	flagVerbose = "verbose"
	flagNoColor = "no-color"

	envOTLPHeaders = "OTEL_EXPORTER_OTLP_HEADERS"
)

// RegisterGlobalFlags adds the flags shared by every subcommand.
func RegisterGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String(flagConfig, "", "Config file (default: rbmap.yaml in . or ./config)")
	root.PersistentFlags().BoolP(flagVerbose, "v", false, "Enable debug logging")
	root.PersistentFlags().Bool(flagNoColor, false, "Disable colored output")
}

// flagValue reads a flag by name from the command or its parents.
// Commands run without the root command see the zero value.
func flagValue(cmd *cobra.Command, name string) string {
	flag := cmd.Flag(name)
	if flag == nil {
		return ""
	}

	return flag.Value.String()
}

func flagBool(cmd *cobra.Command, name string) bool {
	return flagValue(cmd, name) == "true"
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(flagValue(cmd, flagConfig))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// initTelemetry wires logging, tracing and metrics for one command run.
// Logs go to the command's stderr so they never mix with report output.
func initTelemetry(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.LogOutput = cmd.ErrOrStderr()
	obsCfg.LogLevel = cfg.LogLevel()
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(envOTLPHeaders))

	if flagBool(cmd, flagVerbose) {
		obsCfg.LogLevel = slog.LevelDebug
	}

	providers, err := observability.Init(ctx, obsCfg)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init telemetry: %w", err)
	}

	return providers, nil
}

// painter returns a color printer that honors --no-color without touching
// the library-wide switch.
func painter(cmd *cobra.Command, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if flagBool(cmd, flagNoColor) {
		c.DisableColor()
	}

	return c
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
