package run

import (
	"github.com/spf13/cobra"
)

type options struct {
	once       bool
	debug      bool
	pretty     bool
	configPath string
	envFile    string
}

func NewRunCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"r"},
		Short:   "Start the X to Nostr bridge",
		Args:    cobra.NoArgs,
		Example: `  xnostr run
  xnostr run --once --debug
  xnostr run --config /etc/xnostr/config.yaml --env /etc/xnostr/.env`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCmd(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.once, "once", false, "Run a single cycle and exit")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Human readable log output")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default: ~/.xnostr/config.yaml)")
	cmd.Flags().StringVar(&opts.envFile, "env", ".env", "dotenv file merged into the environment")

	return cmd
}
