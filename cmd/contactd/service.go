/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/VictoriaMetrics/metrics"

	"github.com/tomoncle/contactd/api"
	"github.com/tomoncle/contactd/config"
	"github.com/tomoncle/contactd/contact"
	"github.com/tomoncle/contactd/cqrs"
	"github.com/tomoncle/contactd/database"
	"github.com/tomoncle/contactd/repository"
)

type service struct {
	cfg        *config.Config
	dispatcher *cqrs.Dispatcher
	metrics    *metrics.Set
}

func loadConfig(options *Options) (*config.Config, error) {
	cfg, err := config.Load(options.Config)
	if err != nil {
		return nil, err
	}
	if options.Port > 0 {
		cfg.Server.Port = options.Port
	}
	cfg.Log.Apply()
	return cfg, nil
}

// newService connects the database and binds the repositories and handlers.
func newService(ctx context.Context, options *Options) (*service, error) {
	cfg, err := loadConfig(options)
	if err != nil {
		return nil, err
	}
	contact.RegisterModels()
	db, err := database.InitDB(ctx, cfg.ConfigLoader())
	if err != nil {
		return nil, err
	}

	set := metrics.NewSet()
	database.GetDatabaseManager().RegisterMetrics(set)

	repos := repository.NewRegistry()
	if err := contact.RegisterRepositories(repos); err != nil {
		_ = database.CloseDB()
		return nil, fmt.Errorf("register repositories: %w", err)
	}
	handlers := cqrs.NewRegistry()
	if err := contact.RegisterHandlers(handlers, repository.NewFactory(db, repos)); err != nil {
		_ = database.CloseDB()
		return nil, fmt.Errorf("register handlers: %w", err)
	}

	return &service{
		cfg:        cfg,
		dispatcher: cqrs.NewDispatcher(handlers, cqrs.WithMetrics(set)),
		metrics:    set,
	}, nil
}

func (s *service) handler() http.Handler {
	return api.NewHandler(title, version, api.Dependencies{
		Dispatcher: s.dispatcher,
		Health:     database.GetHealthStatus,
		Metrics:    s.metrics,
		Logger:     log,
	})
}

func (s *service) Close() error {
	return database.CloseDB()
}

// initDatabase runs the connect, migrate and seed steps on their own.
func initDatabase(ctx context.Context, options *Options, adjust func(*database.Config)) error {
	cfg, err := loadConfig(options)
	if err != nil {
		return err
	}
	contact.RegisterModels()
	dbcfg := cfg.ConfigLoader()
	adjust(dbcfg)

	f := database.NewDatabaseFactory()
	if _, err := f.CreateFromConfig(dbcfg); err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.InitializeDatabase(ctx)
}
