// Package main is the uriel command line: it evaluates an expression given
// as arguments, runs a script file, serves the HTTP API, or opens an
// interactive prompt.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/log"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/runtime"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "uriel [expression...]",
	Short: "Evaluate uriel expressions and scripts",
	Long: "With arguments, uriel joins them into one expression and prints its result.\n" +
		"With --file it runs a script, passing the arguments as args.\n" +
		"With neither it opens an interactive prompt.",
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("uriel version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "", "Log level: debug, info, warn or error (default warn, env URIEL_LOG_LEVEL)")
	pf.String("log-format", "", "Log format: text or json (default text, env URIEL_LOG_FORMAT)")
	pf.Int("csv-min-run", 0, "Records with a stable field count needed before CSV columns are fixed (default 5, env URIEL_CSV_MIN_RUN)")
	pf.Duration("http-timeout", 0, "Timeout for each http(s) request, 0 for none (env URIEL_HTTP_TIMEOUT)")
	pf.String("profile", "", "Write a profile of the given kind: "+strings.Join(profileModes(), ", ")+" (env URIEL_PROFILE)")

	rootCmd.Flags().StringP("file", "f", "", "Script file to run, - for stdin")
	rootCmd.Flags().Bool("table", false, "Render list and map results as tables")
	rootCmd.Flags().String("history", "", "Prompt history file (default ~/.uriel_history, env URIEL_HISTORY)")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	code := 0
	if err := rootCmd.Execute(); err != nil {
		var exitErr *types.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
			code = 1
		}
	}
	os.Exit(code)
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer startProfile(cmd).Stop()

	engine, err := newEngine(cmd, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table, _ := cmd.Flags().GetBool("table")
	out := cmd.OutOrStdout()

	file, _ := cmd.Flags().GetString("file")
	switch {
	case file != "":
		src, err := readScript(file, cmd.InOrStdin())
		if err != nil {
			return err
		}
		vals := make([]types.Value, len(args))
		for i, a := range args {
			vals[i] = types.NewString(a)
		}
		result, err := engine.RunScript(ctx, src, vals)
		if err != nil {
			return err
		}
		return printResult(out, result, table)

	case len(args) > 0:
		result, err := engine.Execute(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printResult(out, result, table)
	}

	history, _ := cmd.Flags().GetString("history")
	if history == "" {
		history = envOrDefault("URIEL_HISTORY", defaultHistory())
	}
	return runREPL(ctx, engine, replConfig{
		out:     out,
		errOut:  cmd.ErrOrStderr(),
		history: history,
		table:   table,
	})
}

func newLogger(cmd *cobra.Command) (log.Logger, error) {
	levelText, _ := cmd.Flags().GetString("log-level")
	if levelText == "" {
		levelText = envOrDefault("URIEL_LOG_LEVEL", "warn")
	}
	level, err := log.ParseLevel(levelText)
	if err != nil {
		return log.Logger{}, err
	}

	formatText, _ := cmd.Flags().GetString("log-format")
	if formatText == "" {
		formatText = envOrDefault("URIEL_LOG_FORMAT", "text")
	}
	format, err := log.ParseFormat(formatText)
	if err != nil {
		return log.Logger{}, err
	}

	return log.New(cmd.ErrOrStderr(), log.WithLevel(level), log.WithFormat(format)), nil
}

func newEngine(cmd *cobra.Command, logger log.Logger, out io.Writer) (*runtime.Engine, error) {
	policy := codec.DefaultCSVPolicy
	minRun, _ := cmd.Flags().GetInt("csv-min-run")
	if minRun == 0 {
		n, err := strconv.Atoi(envOrDefault("URIEL_CSV_MIN_RUN", strconv.Itoa(policy.MinRun)))
		if err != nil {
			return nil, fmt.Errorf("URIEL_CSV_MIN_RUN: %w", err)
		}
		minRun = n
	}
	if minRun < 1 {
		return nil, fmt.Errorf("csv-min-run must be positive, got %d", minRun)
	}
	policy.MinRun = minRun

	timeout, _ := cmd.Flags().GetDuration("http-timeout")
	if timeout == 0 {
		d, err := time.ParseDuration(envOrDefault("URIEL_HTTP_TIMEOUT", "0s"))
		if err != nil {
			return nil, fmt.Errorf("URIEL_HTTP_TIMEOUT: %w", err)
		}
		timeout = d
	}
	if timeout < 0 {
		return nil, fmt.Errorf("http-timeout must not be negative, got %s", timeout)
	}

	return runtime.NewEngine(
		runtime.WithOutput(out),
		runtime.WithLogger(logger),
		runtime.WithCSVPolicy(policy),
		runtime.WithHTTPClient(resource.NewHTTPClient(timeout)),
	), nil
}

func readScript(file string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}

// printResult writes a result on its own line. Null prints nothing.
func printResult(w io.Writer, v types.Value, table bool) error {
	if v.IsNull() {
		return nil
	}
	if table && renderTable(w, v) {
		return nil
	}
	_, err := fmt.Fprintln(w, codec.Stringify(v))
	return err
}

func defaultHistory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".uriel_history")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
