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
	"database/sql"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/uptrace/bun"
)

// Manager owns one database handle: connecting, pooling, health, migrations
// and seed scripts.
type Manager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	RunMigrations(ctx context.Context) error
	Seed(ctx context.Context) error
	GetStats() *DBStats
	RegisterMetrics(set *metrics.Set)
	SetLogger(logger Logger)
}

// ConfigProvider is implemented by application configs that carry a database section.
type ConfigProvider interface {
	ConfigLoader() *Config
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats is a copy of sql.DBStats with JSON names.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
// Every field can be overridden by the DB_* variable named in its env tag.
type ConnectionConfig struct {
	Type                string        `yaml:"type" env:"DB_TYPE"` // mysql, postgres, pgx, sqlite
	DSN                 string        `yaml:"dsn" env:"DB_DSN"`
	Host                string        `yaml:"host" env:"DB_HOST"`
	Port                int           `yaml:"port" env:"DB_PORT"`
	Username            string        `yaml:"username" env:"DB_USERNAME"`
	Password            string        `yaml:"password" env:"DB_PASSWORD"`
	DBName              string        `yaml:"dbname" env:"DB_NAME"`
	SSLMode             string        `yaml:"sslmode" env:"DB_SSLMODE"`
	Charset             string        `yaml:"charset" env:"DB_CHARSET"`
	MaxIdleConns        int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	MaxOpenConns        int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT"`
	ReadTimeout         time.Duration `yaml:"read_timeout" env:"DB_READ_TIMEOUT"`
	WriteTimeout        time.Duration `yaml:"write_timeout" env:"DB_WRITE_TIMEOUT"`
	EnableReconnect     bool          `yaml:"enable_reconnect" env:"DB_ENABLE_RECONNECT"`
	ReconnectInterval   time.Duration `yaml:"reconnect_interval" env:"DB_RECONNECT_INTERVAL"`
	MaxReconnectTries   int           `yaml:"max_reconnect_tries" env:"DB_MAX_RECONNECT_TRIES"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"DB_HEALTH_CHECK_INTERVAL"`
	EnableQueryLog      bool          `yaml:"enable_query_log" env:"DB_ENABLE_QUERY_LOG"`
	SlowQueryTime       time.Duration `yaml:"slow_query_time" env:"DB_SLOW_QUERY_TIME"`
	AutoCreate          bool          `yaml:"auto_create" env:"DB_AUTO_CREATE"`
}

// MigrateConfig controls schema migration on startup.
type MigrateConfig struct {
	EnableMigrateOnStartup bool `yaml:"enable_migrate_on_startup" env:"DB_MIGRATE_ON_STARTUP"`
	SeedOnMigration        bool `yaml:"seed_on_migration" env:"DB_SEED_ON_MIGRATION"`
}

// SeedConfig controls where seed scripts are read from and when they run.
type SeedConfig struct {
	AutoSeedOnStartup bool   `yaml:"auto_seed_on_startup" env:"DB_SEED_ON_STARTUP"`
	Filepath          string `yaml:"filepath" env:"DB_SEED_PATH"`
	Environment       string `yaml:"environment" env:"DB_SEED_ENV"`
}

// Config aggregates connection, migration and seed settings.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Migrate    MigrateConfig    `yaml:"migrate"`
	Seed       SeedConfig       `yaml:"seed"`
}

// DefaultConnectionConfig returns a connection config with the pool defaults filled in.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     30 * time.Minute,
		ConnectTimeout:      10 * time.Second,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		EnableReconnect:     true,
		ReconnectInterval:   5 * time.Second,
		MaxReconnectTries:   3,
		HealthCheckInterval: 5 * time.Minute,
		SlowQueryTime:       2 * time.Second,
	}
}

// DefaultConfig is a local SQLite database with migrations on startup.
func DefaultConfig() *Config {
	conn := DefaultConnectionConfig()
	conn.Type = "sqlite"
	conn.DBName = "contactd"
	return &Config{
		Connection: *conn,
		Migrate:    MigrateConfig{EnableMigrateOnStartup: true},
		Seed:       SeedConfig{Filepath: "configs/sql", Environment: "prod"},
	}
}
