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

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/uptrace/bun"
)

// BaseDatabaseFactory builds a Manager from a Config and drives its startup:
// connect, migrate and seed.
type BaseDatabaseFactory struct {
	manager Manager
	config  *Config
	logger  Logger
}

func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{logger: GetLogger()}
}

// CreateFromConfig validates cfg, applies the DB_* environment overrides and
// creates the manager.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *Config) (Manager, error) {
	if cfg == nil {
		return nil, errors.New("database configuration cannot be empty")
	}
	if err := OverrideFromEnv(cfg); err != nil {
		f.logger.Warn("Ignoring invalid database environment override", "error", err)
	}
	if _, ok := openers[strings.ToLower(cfg.Connection.Type)]; !ok {
		return nil, fmt.Errorf("unsupported database type: %q, supported types: %v", cfg.Connection.Type, SupportedTypes())
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	f.manager, f.config = manager, cfg
	return manager, nil
}

// OverrideFromEnv overlays the DB_* environment variables onto cfg. Unset
// variables leave the configured value alone; durations use Go syntax ("30s").
func OverrideFromEnv(cfg *Config) error {
	return env.Parse(cfg)
}

// InitializeDatabase connects, then migrates and seeds as configured.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context) error {
	if f.manager == nil {
		return errors.New("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if f.config.Migrate.EnableMigrateOnStartup {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	if f.config.Seed.AutoSeedOnStartup {
		if err := f.manager.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
	}
	f.logger.Info("Database initialization completed")
	return nil
}

func (f *BaseDatabaseFactory) GetManager() Manager {
	return f.manager
}

func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{LastError: "database manager not initialized", LastCheckTime: time.Now()}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
