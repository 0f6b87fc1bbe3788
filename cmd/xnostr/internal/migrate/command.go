package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/xnostr/cmd/xnostr/internal"
	"github.com/tinyland-inc/xnostr/pkg/migrate"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate configuration between formats",
		Example: `  xnostr migrate from-dotenv
  xnostr migrate from-dotenv --env ./.env --dry-run`,
	}

	var opts migrate.FromDotenvOptions

	fromDotenvCmd := &cobra.Command{
		Use:   "from-dotenv",
		Short: "Convert a .env deployment to a YAML config",
		Args:  cobra.NoArgs,
		Example: `  xnostr migrate from-dotenv
  xnostr migrate from-dotenv --dry-run
  xnostr migrate from-dotenv --env /srv/bridge/.env --output ~/.xnostr/config.yaml --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.OutputPath == "" {
				opts.OutputPath = internal.GetConfigPath()
			}
			opts.Stdout = cmd.OutOrStdout()

			result, err := migrate.RunFromDotenv(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !opts.DryRun {
				fmt.Fprintf(out, "Config written to %s\n", result.OutputPath)
			}
			if len(result.Warnings) > 0 {
				fmt.Fprintln(out, "\nWarnings:")
				for _, w := range result.Warnings {
					fmt.Fprintf(out, "  - %s\n", w)
				}
			}
			return nil
		},
	}

	fromDotenvCmd.Flags().StringVar(&opts.EnvPath, "env", ".env",
		"dotenv file to convert")
	fromDotenvCmd.Flags().StringVar(&opts.OutputPath, "output", "",
		"YAML output file path (default: ~/.xnostr/config.yaml)")
	fromDotenvCmd.Flags().BoolVar(&opts.DryRun, "dry-run", false,
		"Print generated YAML without writing")
	fromDotenvCmd.Flags().BoolVar(&opts.Force, "force", false,
		"Overwrite existing output file")

	cmd.AddCommand(fromDotenvCmd)

	return cmd
}
