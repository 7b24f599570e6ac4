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
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/uptrace/bun"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,unique,notnull"`
}

func sqliteConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Connection.DBName = filepath.Join(t.TempDir(), "test")
	cfg.Connection.HealthCheckInterval = 0
	cfg.Seed.Filepath = filepath.Join(t.TempDir(), "sql")
	return cfg
}

func newTestManager(t *testing.T, cfg *Config) Manager {
	t.Helper()
	RegisterModel((*widget)(nil), 10)
	f := NewDatabaseFactory()
	m, err := f.CreateFromConfig(cfg)
	if err != nil {
		t.Fatalf("CreateFromConfig: %v", err)
	}
	if err := f.InitializeDatabase(context.Background()); err != nil {
		t.Fatalf("InitializeDatabase: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return m
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMigrationsCreateTablesOnce(t *testing.T) {
	m := newTestManager(t, sqliteConfig(t))
	ctx := context.Background()

	// second run must be a no-op
	if err := m.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations again: %v", err)
	}

	mm := NewMigrationManager(m.GetDB(), nil, nil)
	applied, err := mm.GetAppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("GetAppliedMigrations: %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "001" {
		t.Fatalf("applied = %+v, want only 001", applied)
	}

	if _, err := m.GetDB().NewInsert().Model(&widget{Name: "a"}).Exec(ctx); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}
}

func TestSeedRunsCommonThenEnvironmentScripts(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Seed.Environment = "test"
	writeFile(t, filepath.Join(cfg.Seed.Filepath, "common", "010_second.sql"),
		"INSERT INTO widgets (name) VALUES ('second');\n")
	writeFile(t, filepath.Join(cfg.Seed.Filepath, "common", "001_first.sql"),
		"-- seed\nINSERT INTO widgets (name)\nVALUES ('first');\n")
	writeFile(t, filepath.Join(cfg.Seed.Filepath, "environments", "test", "001_env.sql"),
		"INSERT INTO widgets (name) VALUES ('{{.ENVIRONMENT}}')\nGO;\n")
	m := newTestManager(t, cfg)
	ctx := context.Background()

	if err := m.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	var names []string
	if err := m.GetDB().NewSelect().Model((*widget)(nil)).Column("name").Order("id ASC").Scan(ctx, &names); err != nil {
		t.Fatalf("select: %v", err)
	}
	want := []string{"first", "second", "test"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
}

func TestSeedIsAtomic(t *testing.T) {
	cfg := sqliteConfig(t)
	writeFile(t, filepath.Join(cfg.Seed.Filepath, "common", "001_dup.sql"),
		"INSERT INTO widgets (name) VALUES ('x');\nINSERT INTO widgets (name) VALUES ('x');\n")
	m := newTestManager(t, cfg)
	ctx := context.Background()

	err := m.Seed(ctx)
	if err == nil {
		t.Fatalf("expected a unique violation")
	}
	if ok, kind := IsSqlError(err); !ok || kind != DuplicateKeyErr {
		t.Fatalf("IsSqlError = %v, %v; want duplicate key", ok, kind)
	}
	n, err := m.GetDB().NewSelect().Model((*widget)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("count = %d, want 0 after rollback", n)
	}
}

func TestSplitSQLStatements(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "semicolons",
			in:   "CREATE TABLE a (id int);\n\n-- comment\nINSERT INTO a\nVALUES (1);\n",
			want: []string{"CREATE TABLE a (id int);", "INSERT INTO a VALUES (1);"},
		},
		{
			name: "go batches keep inner semicolons",
			in:   "INSERT INTO a VALUES (1);\nINSERT INTO a VALUES (2);\nGO;\nINSERT INTO a VALUES (3);\ngo\n",
			want: []string{"INSERT INTO a VALUES (1);\nINSERT INTO a VALUES (2);", "INSERT INTO a VALUES (3);"},
		},
		{
			name: "trailing statement without terminator",
			in:   "SELECT 1",
			want: []string{"SELECT 1"},
		},
		{
			name: "empty",
			in:   "\n-- nothing\n",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitSQLStatements(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInnermostCause(t *testing.T) {
	root := errors.New("root")
	wrapped := fmt.Errorf("outer: %w", fmt.Errorf("middle: %w", root))
	if got := InnermostCause(wrapped); got != root {
		t.Fatalf("got %v, want root", got)
	}
	joined := fmt.Errorf("save: %w", errors.Join(nil, fmt.Errorf("a: %w", root), errors.New("b")))
	if got := InnermostCause(joined); got != root {
		t.Fatalf("joined: got %v, want root", got)
	}
	if InnermostCause(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	if got := InnermostCause(root); got != root {
		t.Fatalf("unwrapped error should be returned as is")
	}
}

func TestIsSqlErrorMessages(t *testing.T) {
	cases := map[string]SQLError{
		"no such table: contacts":                   NoTableErr,
		"UNIQUE constraint failed: contacts.id":     DuplicateKeyErr,
		"NOT NULL constraint failed: contacts.name": NotNullViolationErr,
		"table contacts already exists":             ExistTableErr,
	}
	for msg, want := range cases {
		ok, got := IsSqlError(errors.New(msg))
		if !ok || got != want {
			t.Errorf("%q: got %v/%v, want %v", msg, ok, got, want)
		}
	}
	if ok, _ := IsSqlError(errors.New("boom")); ok {
		t.Errorf("plain error classified as SQL error")
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_CONN_MAX_LIFETIME", "90s")
	t.Setenv("DB_ENABLE_QUERY_LOG", "true")
	cfg := DefaultConfig()
	cfg.Connection.Username = "kept"
	if err := OverrideFromEnv(cfg); err != nil {
		t.Fatalf("OverrideFromEnv: %v", err)
	}
	c := cfg.Connection
	if c.Host != "db.internal" || c.Port != 5433 || c.ConnMaxLifetime != 90*time.Second || !c.EnableQueryLog {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.Username != "kept" || c.Type != "sqlite" {
		t.Fatalf("unset variables changed config: %+v", c)
	}
}

func TestCreateFromConfigRejectsUnknownType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Connection.Type = "oracle"
	_, err := NewDatabaseFactory().CreateFromConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported database type") {
		t.Fatalf("err = %v", err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	m := newTestManager(t, sqliteConfig(t))
	status := m.HealthCheck(context.Background())
	if !status.Healthy || !status.Connected {
		t.Fatalf("status = %+v", status)
	}

	set := metrics.NewSet()
	m.RegisterMetrics(set)
	var sb strings.Builder
	set.WritePrometheus(&sb)
	if !strings.Contains(sb.String(), "db_open_connections") {
		t.Fatalf("pool gauges missing from:\n%s", sb.String())
	}

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if s := m.HealthCheck(context.Background()); s.Healthy {
		t.Fatalf("disconnected manager reported healthy")
	}
}

func TestGlobalConnection(t *testing.T) {
	db, err := InitDB(context.Background(), sqliteConfig(t))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer CloseDB()
	if GetDB() != db {
		t.Fatalf("GetDB did not return the initialized handle")
	}
	if !GetHealthStatus(context.Background()).Healthy {
		t.Fatalf("global health check failed")
	}
}

func TestDisconnectStopsHealthCheck(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Connection.HealthCheckInterval = time.Millisecond
	cfg.Connection.EnableReconnect = true
	cfg.Connection.ReconnectInterval = 0
	cfg.Connection.MaxReconnectTries = 1000
	dm := NewDatabaseManager(cfg).(*defaultDatabaseManager)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if err := dm.Connect(ctx); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		dm.mu.RLock()
		done := dm.healthCheckDone
		dm.mu.RUnlock()
		if done == nil {
			t.Fatalf("health check not started")
		}

		// let ticks queue up behind the lock held by Disconnect
		time.Sleep(2 * time.Millisecond)
		if err := dm.Disconnect(); err != nil {
			t.Fatalf("Disconnect: %v", err)
		}
		select {
		case <-done:
		default:
			t.Fatalf("health check still running after Disconnect")
		}

		time.Sleep(5 * time.Millisecond)
		if dm.GetDB() != nil {
			t.Fatalf("connection reopened after Disconnect (round %d)", i)
		}
	}
}

func TestReconnectKeepsHealthCheckAndResetsTries(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Connection.HealthCheckInterval = time.Hour
	dm := NewDatabaseManager(cfg).(*defaultDatabaseManager)
	ctx := context.Background()
	if err := dm.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer dm.Disconnect()

	dm.mu.Lock()
	done := dm.healthCheckDone
	dm.reconnectTries = cfg.Connection.MaxReconnectTries
	dm.mu.Unlock()

	if err := dm.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if dm.healthCheckDone != done {
		t.Fatalf("Reconnect replaced the running health check")
	}
	if dm.reconnectTries != 0 {
		t.Fatalf("reconnectTries = %d after a successful reconnect", dm.reconnectTries)
	}
}
