package templatetask_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-tpltask/pkg/engine"
	"github.com/goliatone/go-tpltask/pkg/task"
	"github.com/goliatone/go-tpltask/pkg/templatetask"
	"github.com/goliatone/go-tpltask/pkg/testsupport"
)

var (
	fixturesDir = filepath.Join("testdata", "fixtures")
	inPath      = filepath.Join(fixturesDir, "in.njk")
	in2Path     = filepath.Join(fixturesDir, "in2.njk")
)

// countingEnvironment records how often the task reached for the filesystem.
type countingEnvironment struct {
	*engine.Environment
	reads       atomic.Int32
	precompiles atomic.Int32
}

func (c *countingEnvironment) ReadSource(path string) ([]byte, error) {
	c.reads.Add(1)
	return c.Environment.ReadSource(path)
}

func (c *countingEnvironment) Precompile(path string) (string, error) {
	c.precompiles.Add(1)
	return c.Environment.Precompile(path)
}

func TestCompile_RendersWithData(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)

	got, err := tt.Compile(testsupport.Context(), task.Specifier{
		Type:  task.ModeCompile,
		Input: task.Path(inPath),
		Data:  map[string]any{"dog": "woof!"},
	}, "out.html")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got != "woof!" {
		t.Fatalf("want %q, got %q", "woof!", got)
	}
	if writer.Outputs["out.html"] != "woof!" {
		t.Fatalf("writer got %q", writer.Outputs["out.html"])
	}
}

func TestCompile_MatchesDirectRender(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)
	env := newEnv(t, fixturesDir)

	data := map[string]any{"cat": "meow!"}
	got, err := tt.Compile(testsupport.Context(), task.Specifier{Type: task.ModeCompile, Input: task.Path(in2Path), Data: data}, "out.html")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	source, err := env.ReadSource(in2Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	tmpl, err := env.Compile(source)
	if err != nil {
		t.Fatalf("engine compile: %v", err)
	}
	want, err := env.Execute(tmpl, data)
	if err != nil {
		t.Fatalf("engine execute: %v", err)
	}
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestCompile_NilDataRendersEmpty(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)

	got, err := tt.Compile(testsupport.Context(), task.Specifier{Type: task.ModeCompile, Input: task.Path(inPath)}, "out.html")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got != "" {
		t.Fatalf("want empty output, got %q", got)
	}
}

func TestCompile_IncludesResolveAgainstPath(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, filepath.Join("testdata", "expected"))

	got, err := tt.Compile(testsupport.Context(), task.Specifier{
		Type:  task.ModeCompile,
		Input: task.Path(filepath.Join(fixturesDir, "path.njk")),
		Data:  map[string]any{"dog": "woof!", "cat": "meow!", "fox": "????"},
	}, "out.html")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got != "woof! ????" {
		t.Fatalf("want %q, got %q", "woof! ????", got)
	}
}

func TestCompile_ListInputFailsBeforeIO(t *testing.T) {
	for _, paths := range []task.Paths{{inPath}, {inPath, in2Path}, {}} {
		t.Run(fmt.Sprintf("%d paths", len(paths)), func(t *testing.T) {
			writer := testsupport.NewMemoryWriter()
			env := &countingEnvironment{Environment: newEnv(t, fixturesDir)}
			tt, err := templatetask.New(writer, templatetask.Config{}, templatetask.WithEnvironment(env))
			if err != nil {
				t.Fatalf("new task: %v", err)
			}

			_, err = tt.Compile(testsupport.Context(), task.Specifier{Type: task.ModeCompile, Input: paths}, "out.html")
			if !errors.Is(err, templatetask.ErrListInput) {
				t.Fatalf("expected ErrListInput, got %v", err)
			}
			if n := env.reads.Load(); n != 0 {
				t.Fatalf("expected no reads, got %d", n)
			}
			if writer.Calls != 0 {
				t.Fatalf("expected no writes, got %d", writer.Calls)
			}
		})
	}
}

func TestCompile_MissingFile(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)

	_, err := tt.Compile(testsupport.Context(), task.Specifier{
		Type:  task.ModeCompile,
		Input: task.Path(filepath.Join(fixturesDir, "nope.njk")),
	}, "out.html")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if !strings.Contains(err.Error(), "no such file") {
		t.Fatalf("expected missing-file message, got %q", err.Error())
	}
	if writer.Calls != 0 {
		t.Fatalf("expected no writes, got %d", writer.Calls)
	}
}

func TestCompile_TemplateError(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)

	_, err := tt.Compile(testsupport.Context(), task.Specifier{
		Type:  task.ModeCompile,
		Input: task.Path(filepath.Join(fixturesDir, "broken.njk")),
	}, "out.html")
	var tplErr *pongo2.Error
	if !errors.As(err, &tplErr) {
		t.Fatalf("expected *pongo2.Error, got %T: %v", err, err)
	}
	if writer.Calls != 0 {
		t.Fatalf("expected no writes, got %d", writer.Calls)
	}
}

func TestCompile_WriteErrorUnchanged(t *testing.T) {
	writeErr := errors.New("disk full")
	writer := testsupport.NewMemoryWriter()
	writer.Err = writeErr
	tt := newTask(t, writer, fixturesDir)

	_, err := tt.Compile(testsupport.Context(), task.Specifier{Type: task.ModeCompile, Input: task.Path(inPath)}, "out.html")
	if err != writeErr {
		t.Fatalf("expected write error unchanged, got %v", err)
	}
}

func TestCompile_Sanitize(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)

	got, err := tt.Compile(testsupport.Context(), task.Specifier{
		Type:     task.ModeCompile,
		Input:    task.Path(filepath.Join(fixturesDir, "unsafe.njk")),
		Data:     map[string]any{"dog": "woof!"},
		Sanitize: true,
	}, "out.html")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got != "<p>woof!</p>" {
		t.Fatalf("want sanitized markup, got %q", got)
	}
}

func TestPrecompile_JoinsInInputOrder(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)

	if err := tt.Precompile(testsupport.Context(), task.Paths{inPath, in2Path}, "out2.js"); err != nil {
		t.Fatalf("precompile: %v", err)
	}

	golden := testsupport.MustReadGoldenString(t, filepath.Join("testdata", "expected", "out2.js"))
	want := strings.ReplaceAll(golden, "\n", templatetask.LineSeparator)
	if diff := testsupport.CompareGolden(want, writer.Outputs["out2.js"]); diff != "" {
		t.Fatalf("precompile output mismatch (-want +got):\n%s", diff)
	}
}

func TestPrecompile_MatchesEnvironmentBlocks(t *testing.T) {
	dir := t.TempDir()
	var paths task.Paths
	for i := 0; i < 24; i++ {
		paths = append(paths, testsupport.WriteFile(t, dir, fmt.Sprintf("t%02d.njk", i), fmt.Sprintf("{{ v%d }}", i)))
	}

	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, dir, templatetask.WithConcurrency(4))
	if err := tt.Precompile(testsupport.Context(), paths, "all.js"); err != nil {
		t.Fatalf("precompile: %v", err)
	}

	env := newEnv(t, dir)
	blocks := make([]string, 0, len(paths))
	for _, path := range paths {
		block, err := env.Precompile(path)
		if err != nil {
			t.Fatalf("engine precompile: %v", err)
		}
		blocks = append(blocks, block)
	}
	want := strings.Join(blocks, templatetask.LineSeparator)
	if diff := testsupport.CompareGolden(want, writer.Outputs["all.js"]); diff != "" {
		t.Fatalf("batch output mismatch (-want +got):\n%s", diff)
	}
}

func TestPrecompile_FailureWritesNothing(t *testing.T) {
	tests := []struct {
		name  string
		paths task.Paths
		check func(error) bool
	}{
		{
			name:  "missing file",
			paths: task.Paths{inPath, filepath.Join(fixturesDir, "nope.njk"), in2Path},
			check: func(err error) bool { return errors.Is(err, fs.ErrNotExist) },
		},
		{
			name:  "syntax error",
			paths: task.Paths{inPath, filepath.Join(fixturesDir, "broken.njk")},
			check: func(err error) bool {
				var tplErr *pongo2.Error
				return errors.As(err, &tplErr)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			writer := testsupport.NewMemoryWriter()
			tt := newTask(t, writer, fixturesDir)

			err := tt.Precompile(testsupport.Context(), tc.paths, "out.js")
			if !tc.check(err) {
				t.Fatalf("unexpected error %T: %v", err, err)
			}
			if writer.Calls != 0 {
				t.Fatalf("expected no writes, got %d", writer.Calls)
			}
		})
	}
}

func TestPrecompile_IgnoresData(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)

	err := tt.Process(testsupport.Context(), task.Specifier{
		Type:  task.ModePrecompile,
		Input: task.Paths{inPath, in2Path},
		Data:  map[string]any{"dog": "woof!", "cat": "meow!"},
	}, "out3.js")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if strings.Contains(writer.Outputs["out3.js"], "woof!") {
		t.Fatalf("precompile must not render data: %q", writer.Outputs["out3.js"])
	}
}

func TestProcess_BareInputsMatchPrecompile(t *testing.T) {
	inputs := []task.Input{task.Path(inPath), task.Paths{in2Path, inPath}}

	for _, in := range inputs {
		t.Run(fmt.Sprintf("%T", in), func(t *testing.T) {
			viaProcess := testsupport.NewMemoryWriter()
			viaPrecompile := testsupport.NewMemoryWriter()

			if err := newTask(t, viaProcess, fixturesDir).Process(testsupport.Context(), in, "out.js"); err != nil {
				t.Fatalf("process: %v", err)
			}
			if err := newTask(t, viaPrecompile, fixturesDir).Precompile(testsupport.Context(), in, "out.js"); err != nil {
				t.Fatalf("precompile: %v", err)
			}
			if diff := testsupport.CompareGolden(viaPrecompile.Outputs, viaProcess.Outputs); diff != "" {
				t.Fatalf("process differs from precompile (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcess_CompileSpecifierMatchesCompile(t *testing.T) {
	spec := task.Specifier{Type: task.ModeCompile, Input: task.Path(inPath), Data: map[string]any{"dog": "woof!"}}

	viaProcess := testsupport.NewMemoryWriter()
	viaCompile := testsupport.NewMemoryWriter()

	if err := newTask(t, viaProcess, fixturesDir).Process(testsupport.Context(), spec, "out.html"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := newTask(t, viaCompile, fixturesDir).Compile(testsupport.Context(), spec, "out.html"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if diff := testsupport.CompareGolden(viaCompile.Outputs, viaProcess.Outputs); diff != "" {
		t.Fatalf("process differs from compile (-want +got):\n%s", diff)
	}
}

func TestProcess_UnknownTypeCompiles(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)

	err := tt.Process(testsupport.Context(), task.Specifier{Type: "render", Input: task.Path(inPath), Data: map[string]any{"dog": "woof!"}}, "out.html")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if writer.Outputs["out.html"] != "woof!" {
		t.Fatalf("want compiled output, got %q", writer.Outputs["out.html"])
	}
}

func TestProcess_CompileListFails(t *testing.T) {
	writer := testsupport.NewMemoryWriter()
	tt := newTask(t, writer, fixturesDir)

	err := tt.Process(testsupport.Context(), task.Specifier{Type: task.ModeCompile, Input: task.Paths{"a.njk", "b.njk"}}, "out.html")
	if !errors.Is(err, templatetask.ErrListInput) {
		t.Fatalf("expected ErrListInput, got %v", err)
	}
	if writer.Calls != 0 {
		t.Fatalf("expected no writes, got %d", writer.Calls)
	}
}

func TestProcess_NilInput(t *testing.T) {
	tt := newTask(t, testsupport.NewMemoryWriter(), fixturesDir)
	if err := tt.Process(testsupport.Context(), nil, "out.js"); !errors.Is(err, task.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNew_RequiresWriter(t *testing.T) {
	if _, err := templatetask.New(nil, templatetask.Config{}); err == nil {
		t.Fatalf("expected error without writer")
	}
}

func TestExecute_RequiresHost(t *testing.T) {
	tt := newTask(t, testsupport.NewMemoryWriter(), fixturesDir)
	if err := tt.Execute(context.Background()); err == nil {
		t.Fatalf("expected error when writer cannot execute")
	}
}

func newTask(t *testing.T, writer task.Writer, path string, options ...templatetask.Option) *templatetask.Task {
	t.Helper()

	tt, err := templatetask.New(writer, templatetask.Config{Path: path}, options...)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return tt
}

func newEnv(t *testing.T, dir string) *engine.Environment {
	t.Helper()

	env, err := engine.New(engine.WithBaseDir(dir))
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	return env
}
