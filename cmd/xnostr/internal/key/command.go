package key

import (
	"github.com/spf13/cobra"
)

func NewKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Inspect Nostr key material",
	}

	inspectCmd := &cobra.Command{
		Use:     "inspect",
		Short:   "Read an nsec or npub from stdin and print its public key",
		Args:    cobra.NoArgs,
		Example: `  echo "$NOSTR_BOT_NSEC" | xnostr key inspect`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return inspect(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(inspectCmd)
	return cmd
}
