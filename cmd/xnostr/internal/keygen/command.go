package keygen

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/xnostr/pkg/nostr"
)

func NewKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new Nostr identity for the bridge",
		Args:  cobra.NoArgs,
		Example: `  xnostr keygen
  xnostr keygen >> .env`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := nostr.GenerateKeys()
			if err != nil {
				return fmt.Errorf("generate keys: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# npub: %s\n", keys.Npub())
			fmt.Fprintf(out, "NOSTR_BOT_NSEC=%s\n", keys.Nsec())
			return nil
		},
	}
}
