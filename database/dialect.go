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
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

type opener func(cfg *ConnectionConfig) (*sql.DB, schema.Dialect, error)

var openers = map[string]opener{
	"mysql":      openMySQL,
	"postgres":   openPostgres,
	"postgresql": openPostgres,
	"pgx":        openPgx,
	"sqlite":     openSQLite,
	"sqlite3":    openSQLite,
}

// SupportedTypes lists the accepted values of ConnectionConfig.Type.
func SupportedTypes() []string {
	types := make([]string, 0, len(openers))
	for t := range openers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func openDB(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	open, ok := openers[strings.ToLower(cfg.Type)]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported database type: %q, supported types: %v", cfg.Type, SupportedTypes())
	}
	sqlDB, dialect, err := open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, dialect), nil
}

func mysqlConfig(cfg *ConnectionConfig, dbName string) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 3306)))
	mc.DBName = dbName
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	mc.Params = map[string]string{"charset": charset}
	return mc
}

func openMySQL(cfg *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = mysqlConfig(cfg, cfg.DBName).FormatDSN()
	}
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, mysqldialect.New(), nil
}

func postgresURL(cfg *ConnectionConfig, dbName string) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 5432))),
		Path:     "/" + dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func openPostgres(cfg *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = postgresURL(cfg, cfg.DBName)
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, pgdialect.New(), nil
}

func openPgx(cfg *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = postgresURL(cfg, cfg.DBName)
	}
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid pgx dsn: %w", err)
	}
	return stdlib.OpenDB(*connCfg), pgdialect.New(), nil
}

// sqliteFile appends ".db" to DBName unless it already names a file or an
// in-memory database.
func sqliteFile(cfg *ConnectionConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	name := cfg.DBName
	if name == "" {
		name = "contactd"
	}
	if strings.HasPrefix(name, "file:") || strings.Contains(name, ":memory:") || strings.HasSuffix(name, ".db") {
		return name
	}
	return name + ".db"
}

func openSQLite(cfg *ConnectionConfig) (*sql.DB, schema.Dialect, error) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, sqliteFile(cfg))
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, sqlitedialect.New(), nil
}

func portOr(port, def int) int {
	if port > 0 {
		return port
	}
	return def
}

// ensureDatabase creates the configured database on the server when missing.
// SQLite creates its file on open and needs nothing here.
func ensureDatabase(ctx context.Context, cfg *ConnectionConfig) error {
	if cfg.DSN != "" || cfg.DBName == "" {
		return nil
	}
	switch strings.ToLower(cfg.Type) {
	case "mysql":
		db, err := sql.Open("mysql", mysqlConfig(cfg, "").FormatDSN())
		if err != nil {
			return err
		}
		defer db.Close()
		_, err = db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+mysqlQuote(cfg.DBName))
		return err
	case "postgres", "postgresql", "pgx":
		db, err := sql.Open("postgres", postgresURL(cfg, "postgres"))
		if err != nil {
			return err
		}
		defer db.Close()
		var exists bool
		if err := db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", cfg.DBName).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		_, err = db.ExecContext(ctx, "CREATE DATABASE "+pgQuote(cfg.DBName))
		return err
	}
	return nil
}

func mysqlQuote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func pgQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
