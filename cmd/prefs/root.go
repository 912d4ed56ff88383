package prefs

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seiforesti/prefstore/cmd/util"
	"github.com/seiforesti/prefstore/lib/analytics"
	"github.com/seiforesti/prefstore/lib/dashboard"
	"github.com/seiforesti/prefstore/lib/prefs"
	"github.com/seiforesti/prefstore/lib/storage"
)

var (
	backend  storage.IBackend
	manager  prefs.IManager
	recorder analytics.IRecorder
	logger   *zap.Logger

	// PrefsCommands represents the preference command group
	PrefsCommands = &cobra.Command{
		Use:               "prefs",
		Short:             "Read and write preference namespaces",
		PersistentPreRunE: setupManager,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			// Recorder first, its final flush still needs the manager
			if recorder != nil {
				_ = recorder.Close()
			}
			if manager != nil {
				return manager.Close()
			}
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands
	PrefsCommands.AddCommand(getCmd)
	PrefsCommands.AddCommand(setCmd)
	PrefsCommands.AddCommand(removeCmd)
	PrefsCommands.AddCommand(clearCmd)
	PrefsCommands.AddCommand(exportCmd)
	PrefsCommands.AddCommand(watchCmd)
	PrefsCommands.AddCommand(perfTestCmd)
}

// setupManager opens the store directory and registers the standard
// namespaces
func setupManager(cmd *cobra.Command, _ []string) error {
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

	if backend, err = util.GetBackend(logger); err != nil {
		return err
	}

	manager = prefs.NewManager(backend, &prefs.Options{
		Serializer: s,
		Logger:     logger,
	})

	// The standard namespaces must be registered for typed access; the
	// recorder owns the analytics one
	if recorder, err = analytics.NewRecorder(manager, &analytics.Options{Logger: logger}); err != nil {
		return err
	}
	if _, err := dashboard.NewClient(manager, recorder); err != nil {
		return err
	}
	return nil
}
