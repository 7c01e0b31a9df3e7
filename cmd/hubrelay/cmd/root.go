// Package cmd holds the hubrelay command line.
package cmd

import (
	"github.com/spf13/cobra"
)

// RootCmd is the base command, every subcommand hangs off it
var RootCmd = &cobra.Command{
	Use:   "hubrelay",
	Short: "Relays WebSub hub notifications to local handlers",
	Long: `hubrelay subscribes to topics on a WebSub hub, answers the hub's
verification handshakes on a public callback endpoint, and verifies the
signature of every notification before handing it on.`,
	SilenceUsage: true,
}
