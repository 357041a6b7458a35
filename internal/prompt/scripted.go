package prompt

import (
	"context"
	"fmt"
)

// Scripted answers prompts from fixed values keyed by message. Unknown
// messages fall back to the prompt default.
type Scripted struct {
	Inputs   map[string]string
	Confirms map[string]bool
	Asked    []string
}

var _ Driver = (*Scripted)(nil)

func (s *Scripted) Input(ctx context.Context, cfg InputConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.Asked = append(s.Asked, cfg.Message)
	answer, ok := s.Inputs[cfg.Message]
	if !ok {
		answer = cfg.Default
	}
	if cfg.Validator != nil {
		if err := cfg.Validator(answer); err != nil {
			return "", fmt.Errorf("prompt: %q: %w", cfg.Message, err)
		}
	}
	return answer, nil
}

func (s *Scripted) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.Asked = append(s.Asked, cfg.Message)
	answer, ok := s.Confirms[cfg.Message]
	if !ok {
		return cfg.Default, nil
	}
	return answer, nil
}
