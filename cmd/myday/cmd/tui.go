package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"myday/internal/listsync"
	"myday/internal/shutdown"
	"myday/internal/tui"
	"myday/internal/utils"
	"myday/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// newTUICmd creates the 'tui' command
func newTUICmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse lists and tasks interactively",
		Long: `Open the terminal interface.

Lists and tasks reload when the session or the database file changes,
for example after 'myday login' in another terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return utils.WrapWithSuggestion(errors.New("tui needs an interactive terminal"),
					"Use 'myday lists' or 'myday tasks' in scripts")
			}
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			return runTUI(a)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func runTUI(a *app) error {
	mgr := shutdown.NewManager(a.logger)
	stopSignals := mgr.HandleSignals()
	defer stopSignals()
	mgr.RegisterCloser("store", a)

	// Log lines would corrupt the alternate screen.
	bg, err := utils.NewBackgroundLogger(a.conf.Logging.BackgroundEnabled)
	if err != nil {
		a.logger.Warn("background log: %v", err)
	}
	a.logger.SetOutput(bg)
	mgr.Register("background log", func(context.Context) error {
		a.logger.SetOutput(a.stderr)
		return bg.Close()
	})

	cacheOpts := a.cacheOptions()
	if addr := a.conf.Metrics.Addr; addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		cacheOpts = append(cacheOpts, listsync.WithMetrics(listsync.NewMetrics(reg)))
		srv := serveMetrics(a.logger, addr, reg)
		mgr.Register("metrics server", srv.Shutdown)
	}

	model, err := tui.New(a.store, a.session, tui.Options{
		PageSize:     a.conf.PageSize,
		CacheOptions: cacheOpts,
		Now:          a.now,
	})
	if err != nil {
		_ = mgr.Wait(context.Background())
		return err
	}
	mgr.Register("tui", func(context.Context) error {
		model.Close()
		return nil
	})

	if a.conf.Watch.Enabled {
		w, err := startWatcher(a, model)
		if err != nil {
			a.logger.Warn("file watcher disabled: %v", err)
		} else {
			mgr.Register("watcher", func(context.Context) error {
				w.Stop()
				return nil
			})
		}
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(mgr.Context()))
	_, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) && mgr.IsShutdown() {
		runErr = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := mgr.Wait(ctx); err != nil {
		a.logger.Warn("shutdown: %v", err)
	}
	return runErr
}

// startWatcher reloads the session or refreshes the caches when their
// files change on disk.
func startWatcher(a *app, model *tui.Model) (*watcher.Watcher, error) {
	sessionPath, err := filepath.Abs(a.session.Path())
	if err != nil {
		return nil, err
	}
	files := []string{sessionPath}
	if a.storeName == "sqlite" {
		files = append(files, a.conf.SQLite.Path)
	}

	w, err := watcher.New(watcher.Config{
		Files:            files,
		DebounceDuration: a.conf.GetWatchDebounce(),
		Logger:           a.logger,
		OnChange: func(path string) {
			if path == sessionPath {
				a.session.Reload()
				return
			}
			model.Refresh()
		},
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}

func serveMetrics(logger *utils.Logger, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("%v", fmt.Errorf("metrics server: %w", err))
		}
	}()
	return srv
}
