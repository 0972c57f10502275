package commands

import (
	"fmt"

	"github.com/weftwork/weft/internal/agent"
	"github.com/weftwork/weft/internal/config"
	"github.com/weftwork/weft/internal/event"
	"github.com/weftwork/weft/internal/logging"
	"github.com/weftwork/weft/internal/selection"
	"github.com/weftwork/weft/internal/session"
	"github.com/weftwork/weft/internal/storage"
	"github.com/weftwork/weft/internal/store"
)

// app bundles the assembled service stack behind a command.
type app struct {
	config   *config.Config
	registry *agent.Registry
	store    *store.ThreadStore
	bus      *event.Bus
	sessions *session.Service
}

// buildApp loads configuration and assembles storage, the agent registry,
// the event bus, and the session service. dataDir, when non-empty, overrides
// the configured storage location.
func buildApp(workDir, dataDir string) (*app, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	selection.SetFallbackModel(cfg.Model)

	// The --log-level flag wins over the configured level.
	if cfg.LogLevel != "" && !rootCmd.PersistentFlags().Changed("log-level") {
		logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}

	registry := agent.NewRegistry()
	registry.Register(agent.NewEchoPlugin())
	if cfg.DefaultAgent != "" {
		if err := registry.SetDefault(cfg.DefaultAgent); err != nil {
			return nil, fmt.Errorf("invalid defaultAgent: %w", err)
		}
	}

	threadStore := store.New(storage.New(cfg.DataDir))
	bus := event.NewBus()

	return &app{
		config:   cfg,
		registry: registry,
		store:    threadStore,
		bus:      bus,
		sessions: session.NewService(threadStore, registry, bus),
	}, nil
}

func (a *app) Close() {
	a.bus.Close()
}
