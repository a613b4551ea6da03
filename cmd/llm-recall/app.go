package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/thebtf/recall/internal/config"
	"github.com/thebtf/recall/internal/fragment"
	"github.com/thebtf/recall/internal/llmcli"
	"github.com/thebtf/recall/internal/logdb"
	"github.com/thebtf/recall/internal/monitor"
	"github.com/thebtf/recall/internal/profile"
	"github.com/thebtf/recall/internal/updater"
)

// app wires the components together for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *profile.Store
	client *llmcli.Client
	reader *logdb.Reader
	loader *fragment.Loader
}

// newApp builds the full component graph. The monitor is constructed
// but not started; it runs only after a fragment "auto" resolution or
// under the watch command.
func newApp() *app {
	cfg := config.Get()

	level := zerolog.WarnLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	store := profile.NewStore(config.ProfilePath())
	client := llmcli.NewClient(cfg.LLMPath, config.DefaultLocateTimeout, logger)
	reader := logdb.NewReader(client, logger)
	upd := updater.New(store, client, cfg.Model, cfg.PromptTokenBudget, logger)

	mon := monitor.New(monitor.Options{
		Interval:          cfg.UpdateInterval,
		StopCheckInterval: cfg.StopCheckInterval,
		LocateWakeTarget: func(ctx context.Context) (string, error) {
			return reader.Locate(ctx)
		},
	}, reader, upd.Apply, logger)

	loader := fragment.NewLoader(store, mon, cfg.UpdatesEnabled && !cfg.Disabled, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		client: client,
		reader: reader,
		loader: loader,
	}
}

// close releases background resources; best effort on exit.
func (a *app) close() {
	a.loader.Close()
	_ = a.reader.Close()
}
