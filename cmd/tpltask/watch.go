package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	tpltask "github.com/goliatone/go-tpltask"
	"github.com/goliatone/go-tpltask/internal/watch"
)

func (a *app) watchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [task...]",
		Short: "Run tasks and re-run them when templates change",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := tpltask.Load(a.configPath, a.logger, args...)
			if err != nil {
				return err
			}

			var paths, outputs []string
			for _, t := range tasks {
				paths = append(paths, t.Watched()...)
				outputs = append(outputs, t.Outputs()...)
			}

			w, err := watch.New(paths, func(ctx context.Context) error {
				return tpltask.ExecuteAll(ctx, tasks)
			},
				watch.WithDebounce(debounce),
				watch.WithLogger(a.logger),
				watch.WithIgnore(outputs...),
			)
			if err != nil {
				return err
			}
			a.logger.Info("watching", "dirs", len(w.Paths()))
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "Quiet period before re-running")
	return cmd
}
