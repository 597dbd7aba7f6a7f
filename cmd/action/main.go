// Command action runs the example task against a GitHub Actions style
// runner. Diagnostics go to stderr; stdout carries only runner commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/feynman-go/actionkit/action"
	"github.com/feynman-go/actionkit/config"
	"github.com/feynman-go/actionkit/host"
	"github.com/feynman-go/actionkit/lifecycle"
	"github.com/feynman-go/actionkit/record"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	Version = "0.1.0"
	appName = "action"

	stageMetric = "actionkit_stage_duration_seconds"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, buf[:n])
			os.Exit(2)
		}
	}()

	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}

type env struct {
	stdout io.Writer
	stderr io.Writer
	lookup func(string) (string, bool)
	// pusher replaces the Pushgateway client in tests.
	pusher func(url, job string, g prometheus.Gatherer) error
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer, lookup func(string) (string, bool)) int {
	e := &env{stdout: stdout, stderr: stderr, lookup: lookup, pusher: pushMetrics}
	return e.execute(args)
}

func (e *env) execute(args []string) int {
	code := 0
	cmd := e.rootCmd(&code)
	cmd.SetArgs(args)
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	return code
}

func (e *env) rootCmd(code *int) *cobra.Command {
	var (
		configPath  string
		mode        string
		logLevel    string
		timeout     time.Duration
		pushgateway string
	)

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Run the example task",
		Long:          "Reads example-input, sets example-output to \"Processed: <input>\" and reports failures to the runner.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, e.lookup)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("mode") {
				cfg.Mode = mode
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("timeout") {
				cfg.Timeout = timeout
			}
			if flags.Changed("pushgateway") {
				cfg.Pushgateway = pushgateway
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			*code, err = e.run(cmd.Context(), cfg)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&mode, "mode", config.ModeEffect, "Task variant (effect, direct)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Deadline for the whole run, 0 for none")
	cmd.Flags().StringVar(&pushgateway, "pushgateway", "", "Pushgateway URL for stage metrics")

	cmd.AddCommand(&cobra.Command{
		Use:   "machine",
		Short: "Print the task lifecycle as a Mermaid state diagram",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), lifecycle.Mermaid())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schemas of the task input and output",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(map[string]interface{}{
				"input":  action.InputSchema(),
				"output": action.OutputSchema(),
			}, "", "  ")
			if err != nil {
				return errors.Wrap(err, "marshal schema")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

// run executes one task and returns the exit code the runner should see.
// The returned error is set only when the task could not be started.
func (e *env) run(ctx context.Context, cfg *config.Config) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := cfg.Logger(e.stderr)
	if err != nil {
		return 1, err
	}
	defer logger.Sync()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	reg := prometheus.NewRegistry()
	records, prom := record.EasyRecorders(stageMetric, logger)
	prom.MustRegister(reg)

	live := host.NewLive(host.LiveOption{
		Stdout:    e.stdout,
		LookupEnv: e.lookup,
		Logger:    logger,
	})

	logger.Debug("start", zap.String("mode", cfg.Mode), zap.Duration("timeout", cfg.Timeout))
	switch cfg.Mode {
	case config.ModeDirect:
		rc, err := host.LoadContext(e.lookup)
		if err != nil {
			logger.Warn("load run context", zap.Error(err))
			rc = nil
		}
		_ = record.Do(ctx, records, "direct", func(ctx context.Context) error {
			return action.RunDirect(ctx, live, rc)
		})
	default:
		runner := action.NewRunner(live, action.RunnerOption{
			Logger:  logger,
			Records: records,
		})
		defer runner.Close()
		if out, err := runner.Main(ctx); err == nil {
			logger.Debug("done", zap.String("output", out.ExampleOutput))
		}
	}

	if cfg.Pushgateway != "" {
		if err := e.pusher(cfg.Pushgateway, cfg.Job, reg); err != nil {
			logger.Warn("push metrics", zap.String("url", cfg.Pushgateway), zap.Error(err))
		}
	}
	return live.ExitCode(), nil
}

func pushMetrics(url, job string, g prometheus.Gatherer) error {
	return push.New(url, job).Gatherer(g).Push()
}
