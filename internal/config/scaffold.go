package config

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-tpltask/internal/prompt"
	"github.com/goliatone/go-tpltask/pkg/task"
)

func required(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("a value is required")
	}
	return nil
}

// Scaffold asks for the settings of a single precompile task and returns the
// resulting file.
func Scaffold(ctx context.Context, driver prompt.Driver) (*File, error) {
	name, err := driver.Input(ctx, prompt.InputConfig{
		Message:   "Task name",
		Default:   "templates",
		Validator: required,
	})
	if err != nil {
		return nil, err
	}
	path, err := driver.Input(ctx, prompt.InputConfig{
		Message: "Template directory",
		Default: "templates",
		Help:    "Base directory template names and includes resolve against.",
	})
	if err != nil {
		return nil, err
	}
	pattern, err := driver.Input(ctx, prompt.InputConfig{
		Message:   "Templates to precompile",
		Default:   "templates/**/*.njk",
		Validator: required,
	})
	if err != nil {
		return nil, err
	}
	dist, err := driver.Input(ctx, prompt.InputConfig{
		Message: "Output directory",
		Default: "dist",
	})
	if err != nil {
		return nil, err
	}
	output, err := driver.Input(ctx, prompt.InputConfig{
		Message:   "Output file",
		Default:   "templates.js",
		Validator: required,
	})
	if err != nil {
		return nil, err
	}
	cache, err := driver.Confirm(ctx, prompt.ConfirmConfig{
		Message: "Cache template sources between runs?",
		Default: false,
		Help:    "Watch mode keeps serving the first read of each file when enabled.",
	})
	if err != nil {
		return nil, err
	}

	noCache := !cache
	return &File{
		Tasks: map[string]Task{
			strings.TrimSpace(name): {
				Path:    path,
				NoCache: &noCache,
				Dist:    dist,
				Files: task.FileMappings{
					{Output: output, Input: task.Path(pattern)},
				},
			},
		},
	}, nil
}
