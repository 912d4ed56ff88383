package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/seiforesti/prefstore/cmd/util"
	"github.com/seiforesti/prefstore/lib/bus"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [namespace]",
		Short: "Prints the current value of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := args[0]
			var value map[string]any
			if err := manager.Get(namespace, &value); err != nil {
				return err
			}
			return printValue(value)
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [namespace] [json]",
		Short: "Replaces the value of a namespace with the given JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := args[0]
			var value map[string]any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return fmt.Errorf("value must be a JSON object: %w", err)
			}
			if err := manager.Set(namespace, value); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [namespace]",
		Short: "Removes the stored value of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := manager.Clear(args[0]); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes the stored values of all namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := manager.ClearAll(); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Prints all namespaces and their current values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := manager.Export()
			if err != nil {
				return err
			}
			return printValue(all)
		},
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Prints change notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager.Subscribe(bus.NamespaceAll, func(n bus.Notification) {
				if n.Removed {
					fmt.Printf("[%s] %s removed\n", n.Origin, n.Namespace)
					return
				}
				fmt.Printf("[%s] %s = %s\n", n.Origin, n.Namespace, n.Value)
			})

			fmt.Printf("watching %s (ctrl-c to stop)\n", util.GetDir())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
)

func init() {
	exportCmd.Flags().String("format", "json", util.WrapString("Output format (json, yaml)"))
	getCmd.Flags().String("format", "json", util.WrapString("Output format (json, yaml)"))
}

// printValue renders a value in the configured output format
func printValue(v any) error {
	switch viper.GetString("format") {
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}
