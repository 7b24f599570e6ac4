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
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// Migration is one applied migration, stored in schema_migrations.
type Migration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name,notnull"`
	AppliedAt   time.Time `bun:"applied_at,notnull"`
	Description string    `bun:"description"`
}

// MigrationFunc runs inside the migration's transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// MigrationManager applies versioned migrations once each and runs seed scripts.
type MigrationManager struct {
	db     *bun.DB
	config *Config
	logger Logger
}

func NewMigrationManager(db *bun.DB, config *Config, logger Logger) *MigrationManager {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{db: db, config: config, logger: logger}
}

// RunMigrations creates schema_migrations when needed and applies every pending
// migration in version order. Query hooks are silenced unless
// BUNDEBUG_MIGRATION is set.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return errNotConnected
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		ctx = Quiet(ctx)
	}

	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := mm.Migrations()
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	for _, m := range migrations {
		if err := mm.runMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to execute migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	mm.logger.Info("Database migrations completed")
	return nil
}

// Migrations lists the migrations that apply under the current config.
func (mm *MigrationManager) Migrations() []MigrationItem {
	items := []MigrationItem{{
		Version:     "001",
		Name:        "create_base_tables",
		Description: "Create tables for the registered models",
		Up:          mm.createBaseTables,
	}}
	if mm.config.Migrate.SeedOnMigration {
		items = append(items, MigrationItem{
			Version:     "002",
			Name:        "seed_initial_data",
			Description: "Run the seed scripts once",
			Up:          mm.seedInTx,
		})
	}
	return items
}

func (mm *MigrationManager) runMigration(ctx context.Context, m MigrationItem) error {
	applied, err := mm.db.NewSelect().Model((*Migration)(nil)).Where("version = ?", m.Version).Exists(ctx)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := m.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&Migration{
			Version:     m.Version,
			Name:        m.Name,
			AppliedAt:   time.Now(),
			Description: m.Description,
		}).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration applied", "version", m.Version, "name", m.Name)
	return nil
}

func (mm *MigrationManager) createBaseTables(ctx context.Context, db bun.IDB) error {
	for _, model := range RegisteredModelInstances() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}
	return nil
}

func (mm *MigrationManager) seedInTx(ctx context.Context, db bun.IDB) error {
	return mm.sqlInit().Execute(ctx, db)
}

// Seed runs the seed scripts outside of the migration bookkeeping.
func (mm *MigrationManager) Seed(ctx context.Context) error {
	if mm.db == nil {
		return errNotConnected
	}
	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return mm.sqlInit().Execute(ctx, tx)
	})
}

func (mm *MigrationManager) sqlInit() *SQLInitManager {
	s := NewSQLInitManager(mm.config.Seed.Environment)
	if mm.config.Seed.Filepath != "" {
		s.SetSQLRootPath(mm.config.Seed.Filepath)
	}
	s.logger = mm.logger
	return s
}

// GetAppliedMigrations returns the migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var applied []Migration
	err := mm.db.NewSelect().Model(&applied).Order("version ASC").Scan(ctx)
	return applied, err
}
