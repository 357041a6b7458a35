package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-tpltask/internal/config"
	"github.com/goliatone/go-tpltask/internal/logger"
	"github.com/goliatone/go-tpltask/pkg/task"
)

const defaultEnvFile = ".env"

// app carries the global flags and the logger built from them.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	logger     task.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: task.NopLogger()}

	root := &cobra.Command{
		Use:           "tpltask",
		Short:         "Compile and precompile templates",
		Long:          "Renders templates to final text or precompiles them into JavaScript modules, driven by a YAML task file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(defaultEnvFile); err != nil {
				return err
			}
			cfg := logger.DefaultConfig()
			cfg.Level = logger.Level(a.logLevel)
			cfg.JSON = a.logJSON
			cfg.Output = cmd.ErrOrStderr()
			a.logger = logger.New(cfg)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "Path to the task file")
	flags.StringVar(&a.logLevel, "log-level", string(logger.InfoLevel), "Log level: debug, info, warn or error")
	flags.BoolVar(&a.logJSON, "log-json", false, "Emit logs as JSON")

	root.AddCommand(
		a.runCmd(),
		a.watchCmd(),
		a.compileCmd(),
		a.precompileCmd(),
		a.initCmd(),
	)
	return root
}
