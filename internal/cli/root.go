// Package cli wires the roadquest command tree.
package cli

import (
	"github.com/spf13/cobra"
)

const ServiceName = "roadquest"

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           ServiceName,
		Short:         "Car rental booking API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewVersionCmd())
	return cmd
}
