package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seiforesti/prefstore/cmd/analytics"
	"github.com/seiforesti/prefstore/cmd/prefs"
	"github.com/seiforesti/prefstore/cmd/util"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "prefstore",
		Short: "durable preference and cache store",
		Long: fmt.Sprintf(`prefstore (v%s)

A durable preference and cache persistence layer written in Go.
Preferences are organized into namespaces over a shared store
directory, mirrored in memory for fast reads and synchronized
across processes via change notifications.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of prefstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("prefstore v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(prefs.PrefsCommands)
	RootCmd.AddCommand(analytics.AnalyticsCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "dir"
	RootCmd.PersistentFlags().String(key, "", util.WrapString(fmt.Sprintf("store directory (default %s)", util.DefaultDir())))
	key = "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("log level (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
