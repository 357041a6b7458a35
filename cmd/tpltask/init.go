package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-tpltask/internal/config"
	"github.com/goliatone/go-tpltask/internal/prompt"
)

func (a *app) initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a task file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := config.Scaffold(cmd.Context(), prompt.NewSurvey())
			if err != nil {
				if errors.Is(err, prompt.ErrAborted) {
					a.logger.Warn("init aborted")
					return nil
				}
				return err
			}
			if err := config.Save(a.configPath, file, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", a.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing task file")
	return cmd
}
