package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// outputWriter lands text in a file when one is given, otherwise on out.
// Text is written byte for byte in both cases.
type outputWriter struct {
	out  io.Writer
	file string
}

func (w outputWriter) Write(_ context.Context, _ string, text string) error {
	if w.file == "" {
		_, err := io.WriteString(w.out, text)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.file), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(w.file, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", w.file, err)
	}
	return nil
}
