package commands

import (
	"github.com/spf13/cobra"

	"github.com/TheusHen/sae/sae/config"
	"github.com/TheusHen/sae/sae/identity"
	"github.com/TheusHen/sae/sae/log"
)

var (
	configPath string
	logLevel   string
	transport  string

	cfg *config.Config

	// generateIdentity creates the identity for a host or connect run.
	generateIdentity = identity.Generate
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sae",
		Short:         "Ephemeral end-to-end encrypted chat",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if configPath != "" {
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			} else {
				cfg = config.Default()
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("transport") {
				cfg.Transport = transport
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := log.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			log.SetLogger(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&transport, "transport", config.TransportQUIC, "transport (quic, websocket)")

	root.AddCommand(hostCmd(), connectCmd(), configCmd(), versionCmd())
	return root
}
