package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/olimci/lazycell/cmd/internal"
	"github.com/olimci/lazycell/pkg/config"
	"github.com/olimci/lazycell/pkg/events"
	"github.com/olimci/lazycell/pkg/metrics"
	"github.com/olimci/lazycell/pkg/stress"
	"github.com/olimci/lazycell/pkg/utils/fileutils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

var (
	ErrChecksFailed = errors.New("stress checks failed")
	ErrUsage        = errors.New("invalid usage")
)

type stressParams struct {
	ConfigPath string
	Only       []string
	Workers    int
	HTMLPath   string
	NoUI       bool
}

// RunStress runs the configured scenarios, optionally re-running them on every
// change to the scenario file.
func RunStress(ctx context.Context, cmd *cli.Command) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt)
	defer stopSignals()

	out := cmd.Root().Writer
	logger := newLogger(cmd.Root().ErrWriter, cmd.Bool("verbose"))

	params := stressParams{
		ConfigPath: cmd.String("config"),
		Only:       cmd.StringSlice("only"),
		Workers:    cmd.Int("workers"),
		HTMLPath:   cmd.String("html"),
		NoUI:       cmd.Bool("no-ui") || cmd.Bool("watch") || !isTerminal(out),
	}

	if cmd.Bool("watch") && params.ConfigPath == "" {
		return fmt.Errorf("%w: --watch needs --config", ErrUsage)
	}
	// Reloads re-read the file, which would drop the form's choices.
	if cmd.Bool("watch") && cmd.Bool("interactive") {
		return fmt.Errorf("%w: --watch and --interactive cannot be combined", ErrUsage)
	}
	if params.Workers < 0 {
		return fmt.Errorf("%w: --workers must be >= 0 (got %d)", ErrUsage, params.Workers)
	}

	cfg, err := loadConfig(params.ConfigPath)
	if err != nil {
		return err
	}
	scenarios, err := cfg.Select(params.Only...)
	if err != nil {
		return err
	}
	if cmd.Bool("interactive") {
		scenarios, err = runStressInteractive(ctx, cfg, scenarios)
		if err != nil {
			return err
		}
	}

	// The UI owns the terminal, so cell events are only logged without it.
	var handlers []events.Handler
	if params.NoUI {
		handlers = append(handlers, eventLogger(logger))
	}
	if addr := cmd.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		h, err := metrics.New(reg)
		if err != nil {
			return err
		}
		handlers = append(handlers, h)

		srv := internal.NewMetricsServer(addr, reg)
		url, err := srv.Start(ctx)
		if err != nil {
			return err
		}
		defer srv.Shutdown()
		logger.Info("serving metrics", "url", url)
	}
	handler := events.Multi(handlers...)

	runErr := runScenarios(ctx, out, scenarios, handler, params)
	if !cmd.Bool("watch") {
		return runErr
	}
	if runErr != nil && !errors.Is(runErr, ErrChecksFailed) {
		logger.Error("run failed", "err", runErr)
	}

	return watchScenarios(ctx, logger, out, handler, params, cmd.Duration("debounce"))
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "lazycell",
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// eventLogger logs cell events at debug level. Poisoning is logged as a
// warning since scenarios provoke it on purpose.
func eventLogger(logger *log.Logger) events.Handler {
	return events.NewHandlerFunc(func(e events.Event) {
		kv := []any{"cell", e.Cell, "kind", e.Kind}
		if e.Spins > 0 {
			kv = append(kv, "spins", e.Spins)
		}
		if e.Duration > 0 {
			kv = append(kv, "took", e.Duration)
		}
		if e.Error != nil {
			kv = append(kv, "err", e.Error)
		}

		if e.Level == events.Error {
			logger.Warn(e.Message, kv...)
			return
		}
		logger.Debug(e.Message, kv...)
	})
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func loadScenarios(params stressParams) ([]config.Scenario, error) {
	cfg, err := loadConfig(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	return cfg.Select(params.Only...)
}

func runScenarios(ctx context.Context, out io.Writer, scenarios []config.Scenario, handler events.Handler, params stressParams) error {
	opts := []stress.Option{
		stress.WithEventHandler(handler),
		stress.WithMaxWorkers(params.Workers),
	}

	var (
		results []*stress.Result
		err     error
	)

	if params.NoUI {
		printer := newResultPrinter(out)
		results, err = stress.RunAll(ctx, scenarios, printer.Print, opts...)
	} else {
		// Results are rendered by the UI; colour is decided there.
		printer := &resultPrinter{style: outputPlain}
		err = internal.RunUI(ctx, "lazycell stress "+Version, func(ctx context.Context, send func(tea.Msg)) error {
			for i, s := range scenarios {
				send(internal.ScenarioStartedMsg{Name: s.Name, Index: i, Total: len(scenarios)})
				res, err := stress.Run(ctx, s, opts...)
				if err != nil {
					return err
				}
				results = append(results, res)
				send(internal.ScenarioDoneMsg{Line: printer.format(res), Failed: res.Check() != nil})
			}
			return nil
		})
	}
	if err != nil {
		return err
	}

	if params.HTMLPath != "" {
		if err := writeHTMLReport(params.HTMLPath, results); err != nil {
			return err
		}
	}

	failed := 0
	for _, r := range results {
		if r.Check() != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d scenarios", ErrChecksFailed, failed, len(results))
	}
	return nil
}

func writeHTMLReport(path string, results []*stress.Result) error {
	_, err := fileutils.WriteAtomic(path, func(w io.Writer) error {
		return stress.WriteHTML(w, results)
	})
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func watchScenarios(ctx context.Context, logger *log.Logger, out io.Writer, handler events.Handler, params stressParams, debounce time.Duration) error {
	watcher, err := internal.NewFileWatcher(internal.WatcherConfig{
		Path:     params.ConfigPath,
		Debounce: debounce,
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	watchEvents, watchErrors, err := watcher.Start(ctx)
	if err != nil {
		return err
	}
	logger.Info("watching", "path", params.ConfigPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErrors:
			logger.Warn("watch", "err", err)
		case ev := <-watchEvents:
			logger.Info("re-running", "reason", ev.Reason)

			scenarios, err := loadScenarios(params)
			if err != nil {
				logger.Error("reload failed", "err", err)
				continue
			}
			if err := runScenarios(ctx, out, scenarios, handler, params); err != nil {
				logger.Error("run failed", "err", err)
			}
		}
	}
}
