// xnostr - Mirror an X account onto Nostr relays
// License: MIT
//
// Copyright (c) 2026 xnostr contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/xnostr/cmd/xnostr/internal"
	"github.com/tinyland-inc/xnostr/cmd/xnostr/internal/key"
	"github.com/tinyland-inc/xnostr/cmd/xnostr/internal/keygen"
	"github.com/tinyland-inc/xnostr/cmd/xnostr/internal/migrate"
	"github.com/tinyland-inc/xnostr/cmd/xnostr/internal/run"
	"github.com/tinyland-inc/xnostr/cmd/xnostr/internal/version"
)

func NewXnostrCommand() *cobra.Command {
	short := fmt.Sprintf("%s xnostr - X to Nostr bridge v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:          "xnostr",
		Short:        short,
		Example:      "xnostr run --once",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		run.NewRunCommand(),
		keygen.NewKeygenCommand(),
		key.NewKeyCommand(),
		migrate.NewMigrateCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewXnostrCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
