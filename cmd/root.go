package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/timeslotseeker/internal/config"
	"github.com/teemow/timeslotseeker/internal/logging"
)

// rootCmd represents the base command for the timeslotseeker application
var rootCmd = &cobra.Command{
	Use:   "timeslotseeker",
	Short: "Finds common free meeting slots across Google calendars",
	Long: `timeslotseeker looks up the busy time of every participant and lists the
slots in which all of them are free during working hours.

It can run as:
  - A standalone CLI tool (default)
  - An HTTP API and MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

// version will be set by main
var version = "dev"

var (
	configFile string
	settings   = config.Defaults()
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "timeslotseeker version %s\n" .Version}}`)

	// If no subcommand is provided, run the find command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "find")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadSettings resolves .env, the config file, TIMESLOT_* variables and the
// flags of cmd into settings, then installs the default logger.
func loadSettings(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	v := config.New()
	if err := config.ReadFile(v, configFile); err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	s, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := logging.Setup(os.Stderr, s.LogLevel, s.LogFormat); err != nil {
		return err
	}

	settings = s
	return nil
}

func init() {
	d := config.Defaults()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (YAML, JSON or TOML)")
	pf.String(config.KeyLogLevel, d.LogLevel, "Log level: debug, info, warn or error")
	pf.String(config.KeyLogFormat, d.LogFormat, "Log format: text or json")
	pf.String(config.KeyAccount, d.Account, "Google account whose token is used for calendar access")
	pf.String(config.KeyTimeZone, d.TimeZone, "IANA time zone of the working hours")
	pf.Int(config.KeyWorkStartHour, d.WorkStartHour, "First working hour (0-23)")
	pf.Int(config.KeyWorkEndHour, d.WorkEndHour, "Hour at which the working day ends (1-24)")

	rootCmd.AddCommand(newFindCmd())
	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
