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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tomoncle/contactd/database"
	"github.com/tomoncle/contactd/utils"
)

type ServerConfig struct {
	Host              string        `yaml:"host" env:"CONTACTD_HOST"`
	Port              int           `yaml:"port" env:"CONTACTD_PORT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"CONTACTD_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"CONTACTD_SHUTDOWN_TIMEOUT"`
}

// Address is the listen address, host:port.
func (s ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

type LogConfig struct {
	Level         string `yaml:"level" env:"CONTACTD_LOG_LEVEL"`
	ConsoleFormat string `yaml:"console_format" env:"CONSOLE_LOG_FORMAT"`
	FileEnabled   bool   `yaml:"file_enabled" env:"FILE_LOG_ENABLED"`
	FileDir       string `yaml:"file_dir" env:"CONTACTD_LOG_DIR"`
	FileFormat    string `yaml:"file_format" env:"FILE_LOG_FORMAT"`
	FileMaxAge    int    `yaml:"file_max_age" env:"CONTACTD_LOG_MAX_AGE"`
	// Loggers sets the level of single named loggers, e.g. DATABASE: debug.
	Loggers map[string]string `yaml:"loggers"`
}

// Apply configures the utils loggers.
func (l LogConfig) Apply() {
	utils.Configure(utils.LogOptions{
		Level:         l.Level,
		ConsoleFormat: l.ConsoleFormat,
		FileEnabled:   l.FileEnabled,
		FileDir:       l.FileDir,
		FileFormat:    l.FileFormat,
		FileMaxAge:    l.FileMaxAge,
	})
	for name, level := range l.Loggers {
		utils.SetLoggerLevel(name, level)
	}
}

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Log      LogConfig       `yaml:"log"`
	Database database.Config `yaml:"database"`
}

var _ database.ConfigProvider = (*Config)(nil)

// ConfigLoader returns a copy of the database section.
func (c *Config) ConfigLoader() *database.Config {
	db := c.Database
	return &db
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8888,
			ReadHeaderTimeout: 15 * time.Second,
			ShutdownTimeout:   time.Minute,
		},
		Log: LogConfig{
			Level:         "info",
			ConsoleFormat: "text",
			FileDir:       "logs",
			FileFormat:    "text",
			FileMaxAge:    7,
		},
		Database: *database.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.Connection.Type == "" {
		errs = append(errs, errors.New("database.connection.type is required"))
	}
	return errors.Join(errs...)
}
