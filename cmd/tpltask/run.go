package main

import (
	"github.com/spf13/cobra"

	tpltask "github.com/goliatone/go-tpltask"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [task...]",
		Short: "Run tasks from the task file once",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := tpltask.Load(a.configPath, a.logger, args...)
			if err != nil {
				return err
			}
			return tpltask.ExecuteAll(cmd.Context(), tasks)
		},
	}
}
