package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/familysync/familysync-go/log"
)

var (
	cfgFile   string
	appLogger log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "famsyncctl",
	Short: "famsyncctl drives the FamilySync client core from the terminal",
	Long: `A command-line interface for the FamilySync coordination layer:
sign in with a federated provider, walk the onboarding flow, and manage
family membership and your profile.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(levelFlag)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", levelFlag, err)
		}
		zerolog.SetGlobalLevel(level)
		if prettyFlag {
			zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		}
		appLogger = log.NewZerologAdapter(level, prettyFlag)
		return nil
	},
}

var (
	levelFlag  string
	prettyFlag bool
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.familysync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&levelFlag, "log-level", "info", "log level")
	rootCmd.PersistentFlags().BoolVar(&prettyFlag, "pretty", true, "human-readable log output")
}
