package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-tpltask/pkg/engine"
	"github.com/goliatone/go-tpltask/pkg/task"
	"github.com/goliatone/go-tpltask/pkg/templatetask"
)

// adhocFlags are shared by the commands that work without a task file.
type adhocFlags struct {
	path   string
	output string
}

func (f *adhocFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "path", "", "Base directory for template lookup (default: working directory)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write to this file instead of stdout")
}

func (f *adhocFlags) task(cmd *cobra.Command, options ...templatetask.Option) (*templatetask.Task, error) {
	writer := outputWriter{out: cmd.OutOrStdout(), file: f.output}
	return templatetask.New(writer, templatetask.Config{Path: f.path}, options...)
}

func (a *app) compileCmd() *cobra.Command {
	var (
		flags    adhocFlags
		dataFile string
		sanitize bool
	)

	cmd := &cobra.Command{
		Use:   "compile <template>",
		Short: "Render one template with data",
		Long:  "Renders one template with data. The rendered text is written exactly as produced; no trailing newline is added on stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(dataFile)
			if err != nil {
				return err
			}
			t, err := flags.task(cmd)
			if err != nil {
				return err
			}
			a.logger.Debug("compiling", "template", args[0])
			_, err = t.Compile(cmd.Context(), task.Specifier{
				Type:     task.ModeCompile,
				Input:    task.Path(args[0]),
				Data:     data,
				Sanitize: sanitize,
			}, flags.output)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&dataFile, "data", "", "YAML or JSON file holding render data")
	cmd.Flags().BoolVar(&sanitize, "sanitize", false, "Strip unsafe HTML from the output")
	return cmd
}

func (a *app) precompileCmd() *cobra.Command {
	var (
		flags  adhocFlags
		global string
	)

	cmd := &cobra.Command{
		Use:   "precompile <template...>",
		Short: "Precompile templates into a JavaScript module",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var options []templatetask.Option
			if global != "" {
				options = append(options, templatetask.WithEngineOptions(engine.WithPrecompiledGlobal(global)))
			}
			t, err := flags.task(cmd, options...)
			if err != nil {
				return err
			}

			var input task.Input = task.Paths(args)
			if len(args) == 1 {
				input = task.Path(args[0])
			}
			input, err = task.Expand(input)
			if err != nil {
				return err
			}
			a.logger.Debug("precompiling", "templates", len(task.List(input)))
			return t.Precompile(cmd.Context(), input, flags.output)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&global, "global", "", "Browser global the templates register under")
	return cmd
}

func readData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode data %q: %w", path, err)
	}
	return data, nil
}
