package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"modgraph/internal/core/app"
	"modgraph/internal/core/config"
	"modgraph/internal/engine/graph"
	"modgraph/internal/output"
	"modgraph/internal/shared/observability"
	"modgraph/internal/shared/util"
)

const VERSION = "1.0.0"

const defaultConfigPath = "./" + config.DefaultFileName

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	mode       string
	watch      bool
	verbose    bool
	version    bool
	format     string
	outPath    string
	history    int
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flags := flag.NewFlagSet("modgraph", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	flags.StringVar(&opts.mode, "mode", "", "Graph mode: load or update (default from config)")
	flags.BoolVar(&opts.watch, "watch", false, "Rebuild the plan whenever a manifest changes")
	flags.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	flags.BoolVar(&opts.version, "version", false, "Print version and exit")
	flags.StringVar(&opts.format, "format", "table", "Plan output: table, json, "+strings.Join(output.Formats, ", "))
	flags.StringVar(&opts.outPath, "out", "", "Also write the plan as JSON to this file")
	flags.IntVar(&opts.history, "history", 0, "List the N most recent stored plans and exit")
	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if flags.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %v", flags.Args())
		fmt.Fprintln(stderr, err)
		return opts, err
	}
	switch opts.format {
	case "table", "json":
	default:
		if _, err := output.ForFormat(opts.format); err != nil {
			fmt.Fprintln(stderr, err)
			return opts, err
		}
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "modgraph v%s\n", VERSION)
		return 0
	}

	logLevel := slog.LevelInfo
	if opts.verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	mode := cfg.GraphMode()
	if opts.mode != "" {
		mode = graph.Mode(opts.mode)
	}

	if cfg.Observability.Enabled && cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer flushTracing(shutdown)
		}
	}

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer a.Close()

	if opts.history > 0 {
		plans, err := a.History(ctx, opts.history)
		if err != nil {
			slog.Error("failed to load history", "error", err)
			return 1
		}
		fmt.Fprint(stdout, renderHistory(plans))
		return 0
	}

	plan, err := a.Resolve(ctx, mode)
	if err != nil {
		slog.Error("resolve failed", "error", err)
		return 1
	}
	if err := emit(stdout, plan, opts); err != nil {
		slog.Error("failed to write plan", "error", err)
		return 1
	}

	if !opts.watch {
		return 0
	}

	if cfg.Observability.Enabled {
		srv := app.NewObservabilityServer(cfg.Observability.Address, app.NewHealthService(a))
		if err := srv.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	if _, err := os.Stat(opts.configPath); err == nil {
		cw := config.NewWatcher(opts.configPath, a.Reload)
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		} else {
			defer cw.Stop()
		}
	}

	err = a.Watch(ctx, func(p *app.Plan, err error) {
		if err != nil {
			return
		}
		if err := emit(stdout, p, opts); err != nil {
			slog.Error("failed to write plan", "error", err)
		}
	})
	if err != nil {
		slog.Error("watch failed", "error", err)
		return 1
	}
	return 0
}

// loadConfig falls back to defaults only when the default config file is absent.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		slog.Info("no config file found, using defaults", "path", path)
		cfg := config.DefaultConfig()
		config.ApplyEnvOverrides(cfg)
		return cfg, nil
	}
	return nil, err
}

func emit(stdout io.Writer, plan *app.Plan, opts options) error {
	if opts.outPath != "" {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}
		if err := util.WriteFileWithDirs(opts.outPath, append(data, '\n'), 0o644); err != nil {
			return err
		}
	}
	switch opts.format {
	case "table":
		_, err := fmt.Fprint(stdout, renderPlan(plan))
		return err
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	gen, err := output.ForFormat(opts.format)
	if err != nil {
		return err
	}
	text, err := gen.Generate(plan)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(stdout, text)
	return err
}

func flushTracing(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}
}
