package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tomkarw/kiwi-store/cmd/kv"
	"github.com/tomkarw/kiwi-store/cmd/serve"
	"github.com/tomkarw/kiwi-store/cmd/util"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kiwi",
		Short: "networked key-value store",
		Long: fmt.Sprintf(`kiwi-store (v%s)

A networked key-value store with a log-structured storage engine and a
concurrent request dispatcher with per-key ordering guarantees.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kiwi-store",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kiwi-store v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
