// Package main provides the council CLI entry point.
// council turns city council agenda and minutes documents into structured records.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/council-records/cmd"
	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/buildinfo"
	"github.com/otherjamesbrown/council-records/pkg/logging"
)

// Global flags and state.
var (
	outputFormat string
	logLevel     string
	debug        bool
	logJSON      bool

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "council",
	Short: "Council records - agenda and minutes parser",
	Long: `council turns city council agenda and minutes documents into structured records.

Agendas become sections and items with packet page ranges and file numbers.
Minutes become voted items with results, tallies and a per-member vote
breakdown. Packets can be split into one PDF per agenda item.

COMMON WORKFLOWS:
  One document:     council parse agenda agenda.pdf  |  council parse minutes minutes.pdf
  Split a packet:   council parse agenda agenda.pdf -o agenda.json  →  council split packet.pdf agenda.json ./split
  Whole archive:    council batch ./meetings --split
  Keep up to date:  council watch ./meetings --store --publish
  Database setup:   council db migrate  →  council batch ./meetings --store

Use --output-format json for machine-readable output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if c.Name() == "version" || c.Name() == "help" || c.Name() == "completion" {
			return nil
		}

		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		// Override with command-line flags.
		if outputFormat != "" {
			loaded.OutputFormat = config.OutputFormat(outputFormat)
			if !loaded.OutputFormat.IsValid() {
				return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", outputFormat)
			}
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		if debug {
			loaded.Debug = true
		}
		if logJSON {
			loaded.LogJSON = true
		}
		cfg = loaded

		logging.SetGlobal(newLogger(cfg, os.Stderr))
		return nil
	},
}

// newLogger builds the process logger from the configuration.
func newLogger(c *config.CLIConfig, out io.Writer) logging.Logger {
	level := logging.ParseLevel(c.LogLevel)
	if c.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:      level,
		Component:  buildinfo.Name,
		JSONFormat: c.LogJSON,
		Output:     out,
	})
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the council CLI.

Use --output-format json for machine-readable output.`,
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get()
		out := c.OutOrStdout()

		switch config.OutputFormat(outputFormat) {
		case config.OutputFormatJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case config.OutputFormatYAML:
			return yaml.NewEncoder(out).Encode(info)
		}

		fmt.Fprintf(out, "%s version %s\n", info.Name, info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s (%s)\n", info.GoVersion, info.Platform)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and initialize the council CLI configuration file.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: defaults, then the config file, then
COUNCIL_* environment variables, then command-line flags. Passwords are masked.`,
	RunE: func(c *cobra.Command, args []string) error {
		configPath, _ := config.ConfigPath()
		return showConfig(c.OutOrStdout(), configPath, cfg)
	},
}

func showConfig(out io.Writer, configPath string, c *config.CLIConfig) error {
	masked := *c
	masked.Database.Password = mask(masked.Database.Password)
	masked.Redis.Password = mask(masked.Redis.Password)

	if c.OutputFormat != config.OutputFormatText {
		data, err := config.Marshal(&masked)
		if err != nil {
			return err
		}
		if c.OutputFormat == config.OutputFormatYAML {
			_, err = out.Write(data)
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(masked)
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Config file:       %s\n", configPath)
	fmt.Fprintf(out, "  Output format:     %s\n", masked.OutputFormat)
	fmt.Fprintf(out, "  Output dir:        %s\n", valueOrDefault(masked.OutputDir, "(stdout)"))
	fmt.Fprintf(out, "  Log level:         %s (json: %t, debug: %t)\n", masked.LogLevel, masked.LogJSON, masked.Debug)
	fmt.Fprintf(out, "  Minutes max pages: %d\n", masked.MinutesMaxPages)
	fmt.Fprintf(out, "  Concurrency:       %d\n", masked.Concurrency)
	fmt.Fprintf(out, "  Fallback roster:   %v\n", masked.FallbackRoster)
	fmt.Fprintf(out, "  Timeout:           %s\n", masked.Timeout)
	fmt.Fprintf(out, "  Watch debounce:    %s\n", masked.WatchDebounce)
	fmt.Fprintf(out, "  Database:          %s\n", databaseLabel(masked.Database))
	fmt.Fprintf(out, "  Redis:             %s\n", valueOrDefault(masked.Redis.Addr, "(not set)"))
	fmt.Fprintf(out, "  Metrics addr:      %s\n", valueOrDefault(masked.MetricsAddr, "(not set)"))
	fmt.Fprintf(out, "  Metrics file:      %s\n", valueOrDefault(masked.MetricsFile, "(not set)"))
	return nil
}

func databaseLabel(d config.DatabaseConfig) string {
	if d.URL != "" {
		return "(DATABASE_URL)"
	}
	return d.DB(0).Host + "/" + d.DB(0).Database
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func valueOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(c *cobra.Command, args []string) error {
		return initConfig(c.OutOrStdout())
	},
}

func initConfig(out io.Writer) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
		fmt.Fprintln(out, "Use 'council config show' to view current settings.")
		return nil
	}

	defaultCfg := config.DefaultConfig()
	path, err := config.SaveConfig(defaultCfg)
	if err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}

	fmt.Fprintf(out, "Created configuration file: %s\n", path)
	fmt.Fprintln(out, "\nDefault settings:")
	fmt.Fprintf(out, "  Output format:     %s\n", defaultCfg.OutputFormat)
	fmt.Fprintf(out, "  Minutes max pages: %d\n", defaultCfg.MinutesMaxPages)
	fmt.Fprintf(out, "  Concurrency:       %d\n", defaultCfg.Concurrency)
	return nil
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for council.

Bash:
  $ source <(council completion bash)

Zsh:
  $ council completion zsh > "${fpath[1]}/_council"

Fish:
  $ council completion fish | source

PowerShell:
  PS> council completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(c *cobra.Command, args []string) error {
		out := c.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output-format", "", "Output format: text, json, yaml (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON lines")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	deps := cmd.DefaultDeps()
	deps.LoadConfig = func() (*config.CLIConfig, error) {
		if cfg != nil {
			return cfg, nil
		}
		return config.LoadConfig()
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(cmd.NewParseCommand(deps))
	rootCmd.AddCommand(cmd.NewSplitCommand(deps))
	rootCmd.AddCommand(cmd.NewBatchCommand(deps))
	rootCmd.AddCommand(cmd.NewWatchCommand(deps))
	rootCmd.AddCommand(cmd.NewDbCommand(deps))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
