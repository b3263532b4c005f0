package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kestrel-flight/kestrel/internal/daemon"
)

func init() {
	flyCmd.Flags().StringVar(&flyConfig, "config", "", "Path to config.toml (default $KESTREL_HOME/config.toml)")
	flyCmd.Flags().StringVar(&flyHost, "host", "", "API host to listen on (overrides config)")
	flyCmd.Flags().IntVar(&flyPort, "port", 0, "API port to listen on (overrides config)")
	rootCmd.AddCommand(flyCmd)
}

var (
	flyConfig string
	flyHost   string
	flyPort   int
)

var flyCmd = &cobra.Command{
	Use:   "fly",
	Short: "Boot the flight computer and run the tick loop",
	Long:  `Boot into STARTUP mode and run the tick executive with the ground API attached.`,
	RunE:  runFly,
}

func runFly(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(flyConfig)
	if err != nil {
		return err
	}
	if flyHost != "" {
		cfg.API.Host = flyHost
	}
	if flyPort > 0 {
		cfg.API.Port = flyPort
	}

	fc, err := daemon.New(cfg, rootCmd.Version)
	if err != nil {
		return err
	}
	fc.Boot()
	return fc.Serve(context.Background())
}
