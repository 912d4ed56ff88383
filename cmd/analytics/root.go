package analytics

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seiforesti/prefstore/cmd/util"
	"github.com/seiforesti/prefstore/lib/analytics"
	"github.com/seiforesti/prefstore/lib/dashboard"
	"github.com/seiforesti/prefstore/lib/prefs"
)

var (
	manager  prefs.IManager
	recorder analytics.IRecorder
	client   *dashboard.Client
	logger   *zap.Logger

	// AnalyticsCommands represents the analytics command group
	AnalyticsCommands = &cobra.Command{
		Use:               "analytics",
		Short:             "Inspect navigation usage analytics",
		PersistentPreRunE: setupClient,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if recorder != nil {
				_ = recorder.Close()
			}
			if manager != nil {
				return manager.Close()
			}
			return nil
		},
	}

	topCmd = &cobra.Command{
		Use:   "top",
		Short: "Prints navigation targets by descending usage count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			most := client.GetMostUsedItems()
			if len(most) == 0 {
				fmt.Println("no usage recorded")
				return nil
			}

			fmt.Println("most used items:")
			for _, kc := range most {
				fmt.Printf("%8d  %s\n", kc.Count, kc.Key)
			}

			if patterns := client.GetNavigationPatterns(); len(patterns) > 0 {
				fmt.Println("\nnavigation patterns:")
				for _, kc := range patterns {
					fmt.Printf("%8d  %s\n", kc.Count, kc.Key)
				}
			}
			return nil
		},
	}

	recordCmd = &cobra.Command{
		Use:   "record [path]",
		Short: "Records a navigation event and flushes it to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client.RecordNavigation(args[0])
			// The recorder's final flush on close persists the event
			fmt.Println("recorded successfully")
			return nil
		},
	}

	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Flushes buffered events into the persisted aggregate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := recorder.Flush(); err != nil {
				return err
			}
			fmt.Println("flushed successfully")
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands
	AnalyticsCommands.AddCommand(topCmd)
	AnalyticsCommands.AddCommand(recordCmd)
	AnalyticsCommands.AddCommand(flushCmd)
}

// setupClient opens the store directory and builds the dashboard client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	if logger, err = util.GetLogger(); err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	backend, err := util.GetBackend(logger)
	if err != nil {
		return err
	}

	manager = prefs.NewManager(backend, &prefs.Options{
		Serializer: s,
		Logger:     logger,
	})

	if recorder, err = analytics.NewRecorder(manager, &analytics.Options{Logger: logger}); err != nil {
		return err
	}

	client, err = dashboard.NewClient(manager, recorder)
	return err
}
