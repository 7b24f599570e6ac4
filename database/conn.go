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
	"sync"
	"time"

	"github.com/uptrace/bun"
)

var (
	globalMu      sync.RWMutex
	globalFactory *BaseDatabaseFactory
)

func current() *BaseDatabaseFactory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFactory
}

// InitDB opens the process-wide database described by cfg and runs the
// configured startup steps.
func InitDB(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, errors.New("database configuration cannot be empty")
	}
	f := NewDatabaseFactory()
	if _, err := f.CreateFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := f.InitializeDatabase(ctx); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	globalMu.Lock()
	globalFactory = f
	globalMu.Unlock()
	return f.GetDB(), nil
}

func GetDB() *bun.DB {
	if f := current(); f != nil {
		return f.GetDB()
	}
	return nil
}

func GetDatabaseManager() Manager {
	if f := current(); f != nil {
		return f.GetManager()
	}
	return nil
}

func CloseDB() error {
	globalMu.Lock()
	f := globalFactory
	globalFactory = nil
	globalMu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

// GetHealthStatus reports the health of the process-wide database.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if f := current(); f != nil {
		return f.GetHealthStatus(ctx)
	}
	return &HealthStatus{LastError: "database not initialized", LastCheckTime: time.Now()}
}

func GetDatabaseStats() *DBStats {
	if f := current(); f != nil {
		return f.GetStats()
	}
	return &DBStats{}
}
