package app

import (
	"context"
	"errors"
	"fmt"

	"melodypath/internal/config"
	"melodypath/internal/server"
)

type App struct {
	server *server.Server
	stores *Stores
}

func New(cfg config.Config) (*App, error) {
	stores, err := OpenStores(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}

	deps := server.Deps{
		Config:    cfg,
		Runner:    stores.Runner,
		Artifacts: stores.Artifacts,
		Runs:      stores.Runs,
	}
	if stores.Links != nil {
		deps.Links = stores.Links
	}
	h := server.NewHandler(deps)

	return &App{
		server: server.New(cfg.Service.Port, h.Router()),
		stores: stores,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	return errors.Join(a.server.Shutdown(ctx), a.stores.Close())
}
