package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/runtime"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

const (
	promptMain = "? "
	promptCont = ". "
	resultMark = "= "
)

type replConfig struct {
	out     io.Writer
	errOut  io.Writer
	history string
	table   bool
}

// lineReader is the part of liner.State the prompt loop uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

func runREPL(ctx context.Context, engine *runtime.Engine, cfg replConfig) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		return complete(engine.Registry(), line)
	})

	if cfg.history != "" {
		if f, err := os.Open(cfg.history); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}

	err := loop(ctx, engine, &historyReader{State: ln}, cfg)

	if cfg.history != "" {
		if f, err := os.Create(cfg.history); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}
	return err
}

// historyReader records every non-blank line it reads.
type historyReader struct {
	*liner.State
}

func (h *historyReader) Prompt(prompt string) (string, error) {
	line, err := h.State.Prompt(prompt)
	if err == nil && strings.TrimSpace(line) != "" {
		h.AppendHistory(line)
	}
	return line, err
}

// loop reads and executes entries until quit, exit or end of input. A line
// opening a bloc keeps reading until its blocs are closed or a blank line
// is entered. Errors are printed and the loop continues; an exit status
// ends it.
func loop(ctx context.Context, engine *runtime.Engine, r lineReader, cfg replConfig) error {
	errColor := color.New(color.FgRed)
	markColor := color.New(color.FgCyan)

	for {
		src, ok := readEntry(engine.Registry(), r)
		if !ok {
			fmt.Fprintln(cfg.out)
			return nil
		}
		switch strings.TrimSpace(src) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		result, err := engine.Execute(ctx, src)
		if err != nil {
			var exitErr *types.ExitError
			if errors.As(err, &exitErr) {
				return err
			}
			errColor.Fprintln(cfg.errOut, err)
			continue
		}
		if result.IsNull() {
			continue
		}
		if cfg.table && renderTable(cfg.out, result) {
			continue
		}
		markColor.Fprint(cfg.out, resultMark)
		_ = printResult(cfg.out, result, false)
	}
}

// readEntry reads one entry, which may span lines. It reports false at end
// of input. An aborted line yields an empty entry.
func readEntry(reg *expr.Registry, r lineReader) (string, bool) {
	line, err := r.Prompt(promptMain)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", true
	}
	if err != nil {
		return "", false
	}

	depth := blocDelta(reg, line)
	if depth <= 0 {
		return line, true
	}
	lines := []string{line}
	for depth > 0 {
		next, err := r.Prompt(promptCont)
		if err != nil || strings.TrimSpace(next) == "" {
			break
		}
		lines = append(lines, next)
		depth += blocDelta(reg, next)
	}
	return strings.Join(lines, "\n"), true
}

// blocDelta is +1 for a line opening a bloc, -1 for an end line and 0
// otherwise.
func blocDelta(reg *expr.Registry, line string) int {
	txt := strings.TrimSpace(line)
	if txt == "" || txt[0] == '#' {
		return 0
	}
	x, err := expr.CompileLine(reg, txt)
	if err != nil {
		return 0
	}
	fn := x.Function()
	if fn == nil || fn.Category() != expr.Bloc {
		return 0
	}
	if fn.Name() == expr.EndName {
		return -1
	}
	return 1
}

// complete offers the function names extending the line's last word.
func complete(reg *expr.Registry, line string) []string {
	start := strings.LastIndexAny(line, " \t") + 1
	prefix, word := line[:start], line[start:]
	if word == "" {
		return nil
	}
	var out []string
	for _, name := range reg.Names() {
		if strings.HasPrefix(name, word) {
			out = append(out, prefix+name)
		}
	}
	return out
}
