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
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

var errNotConnected = errors.New("database not connected")

type defaultDatabaseManager struct {
	config *Config
	db     *bun.DB
	sqlDB  *sql.DB
	logger Logger

	mu              sync.RWMutex
	connected       bool
	lastError       error
	healthStatus    *HealthStatus
	reconnectTries  int
	stopHealthCheck context.CancelFunc
	healthCheckDone chan struct{}
}

// NewDatabaseManager returns a Manager backed by bun. A nil config falls back
// to DefaultConfig.
func NewDatabaseManager(config *Config) Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &defaultDatabaseManager{
		config:       config,
		logger:       GetLogger(),
		healthStatus: &HealthStatus{},
	}
}

func (dm *defaultDatabaseManager) conn() *ConnectionConfig { return &dm.config.Connection }

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.connectLocked(ctx)
}

func (dm *defaultDatabaseManager) connectLocked(ctx context.Context) error {
	if dm.connected && dm.db != nil {
		return nil
	}
	cfg := dm.conn()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if cfg.AutoCreate {
		if err := ensureDatabase(ctxTimeout, cfg); err != nil {
			dm.lastError = err
			return fmt.Errorf("failed to create database %q: %w", cfg.DBName, err)
		}
	}

	sqlDB, db, err := openDB(cfg)
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	dm.installHooks(db)

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctxTimeout); err != nil {
		_ = db.Close()
		dm.lastError = err
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.db, dm.sqlDB = db, sqlDB
	dm.db.RegisterModel(RegisteredModelInstances()...)
	dm.connected = true
	dm.lastError = nil
	dm.reconnectTries = 0

	if cfg.HealthCheckInterval > 0 && dm.stopHealthCheck == nil {
		dm.startHealthCheckLocked(cfg.HealthCheckInterval)
	}
	dm.logger.Info("Database connected", "type", cfg.Type, "host", cfg.Host, "dbname", cfg.DBName)
	return nil
}

func (dm *defaultDatabaseManager) installHooks(db *bun.DB) {
	cfg := dm.conn()
	if cfg.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	} else {
		db.AddQueryHook(NewQueryHook(os.Stdout, debugEnabled))
	}
	if cfg.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{threshold: cfg.SlowQueryTime, logger: dm.logger})
	}
}

// Disconnect stops the health checker and closes the connection. It returns
// once the checker goroutine has exited.
func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	var done chan struct{}
	if dm.stopHealthCheck != nil {
		dm.stopHealthCheck()
		done = dm.healthCheckDone
		dm.stopHealthCheck, dm.healthCheckDone = nil, nil
	}
	err := dm.closeLocked()
	dm.mu.Unlock()

	if done != nil {
		<-done
	}
	return err
}

// closeLocked closes the connection and leaves the health checker running.
func (dm *defaultDatabaseManager) closeLocked() error {
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db, dm.sqlDB = nil, nil
	dm.connected = false
	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	dm.logger.Info("Database connection closed")
	return nil
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	dm.logger.Info("Reconnecting to the database")
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.closeLocked(); err != nil {
		dm.logger.Warn("Error closing the previous connection", "error", err)
	}
	return dm.connectLocked(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return errNotConnected
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start, Connected: dm.connected}
	if dm.db == nil {
		status.LastError = errNotConnected.Error()
		dm.healthStatus = status
		return status
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := dm.db.PingContext(ctxTimeout)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.Connected = false
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.Connected = true
	}
	dm.lastError = err

	stats := dm.sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	dm.healthStatus = status
	return status
}

func (dm *defaultDatabaseManager) startHealthCheckLocked(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	dm.stopHealthCheck, dm.healthCheckDone = cancel, done
	go dm.runHealthCheck(ctx, interval, done)
}

func (dm *defaultDatabaseManager) runHealthCheck(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		status := dm.HealthCheck(checkCtx)
		cancel()
		if !status.Healthy && dm.conn().EnableReconnect {
			dm.tryReconnect(ctx)
		}
	}
}

// tryReconnect reopens the connection on behalf of the checker owning ctx.
// Nothing is reopened once that checker has been stopped.
func (dm *defaultDatabaseManager) tryReconnect(ctx context.Context) {
	cfg := dm.conn()
	dm.mu.Lock()
	if dm.reconnectTries >= cfg.MaxReconnectTries {
		tries := dm.reconnectTries
		dm.mu.Unlock()
		dm.logger.Error("Max reconnect attempts reached", "tries", tries)
		return
	}
	dm.reconnectTries++
	tries := dm.reconnectTries
	dm.mu.Unlock()
	dm.logger.Info("Starting database reconnect", "try", tries)

	wait := time.NewTimer(cfg.ReconnectInterval)
	defer wait.Stop()
	select {
	case <-ctx.Done():
		return
	case <-wait.C:
	}

	// not derived from ctx: closing the old connection must not cancel opening the new one
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	dm.mu.Lock()
	defer dm.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if err := dm.closeLocked(); err != nil {
		dm.logger.Warn("Error closing the previous connection", "error", err)
	}
	if err := dm.connectLocked(connectCtx); err != nil {
		dm.logger.Error("Reconnect failed", "error", err, "try", tries)
		return
	}
	dm.logger.Info("Reconnect succeeded")
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	s := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

// RegisterMetrics exposes the pool statistics as gauges on set.
func (dm *defaultDatabaseManager) RegisterMetrics(set *metrics.Set) {
	gauge := func(name string, read func(*DBStats) float64) {
		set.GetOrCreateGauge(name, func() float64 { return read(dm.GetStats()) })
	}
	gauge("db_max_open_connections", func(s *DBStats) float64 { return float64(s.MaxOpenConns) })
	gauge("db_open_connections", func(s *DBStats) float64 { return float64(s.OpenConns) })
	gauge("db_in_use_connections", func(s *DBStats) float64 { return float64(s.InUse) })
	gauge("db_idle_connections", func(s *DBStats) float64 { return float64(s.Idle) })
	gauge("db_wait_count_total", func(s *DBStats) float64 { return float64(s.WaitCount) })
	gauge("db_wait_duration_seconds_total", func(s *DBStats) float64 { return s.WaitDuration.Seconds() })
}

func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return errNotConnected
	}
	return NewMigrationManager(db, dm.config, dm.logger).RunMigrations(ctx)
}

func (dm *defaultDatabaseManager) Seed(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return errNotConnected
	}
	return NewMigrationManager(db, dm.config, dm.logger).Seed(ctx)
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
