package main

import (
	"context"
	"fmt"
	"os"

	"calctree/infrastructure/config"
	"calctree/infrastructure/di"
	"calctree/interfaces/invoke"
)

func main() {
	root := newRootCmd(os.Stdout, openDispatcher)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDispatcher builds the container from the environment. A non-empty
// backend or badgerPath overrides STORE_BACKEND and BADGER_PATH.
func openDispatcher(ctx context.Context, opts globalOptions) (*invoke.Dispatcher, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if opts.backend != "" {
		cfg.StoreBackend = opts.backend
	}
	if opts.badgerPath != "" {
		cfg.BadgerPath = opts.badgerPath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		_ = container.Logger.Sync()
		cleanup()
	}
	return invoke.NewDispatcher(container.CommandBus, container.QueryBus, container.Logger), closeAll, nil
}
