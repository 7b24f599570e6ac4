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

package utils

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

// LogOptions mirrors the log section of the service configuration.
type LogOptions struct {
	Level         string
	ConsoleFormat string
	FileEnabled   bool
	FileDir       string
	FileFormat    string
	FileMaxAge    int
}

var (
	consoleLevel = logrus.InfoLevel
	fileLevel    = logrus.TraceLevel

	settingsMu    sync.RWMutex
	consoleFormat = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	fileFormat    = EnvDefaultString("FILE_LOG_FORMAT", "text")
	fileEnabled   = EnvDefaultBool("FILE_LOG_ENABLED", false)
	fileDir       = "logs"
	fileMaxAge    = 7

	registryMu sync.RWMutex
	registry   = map[string]*logrus.Logger{}
	overrides  = map[string]logrus.Level{}
)

// Configure applies the log options to every logger created afterwards and
// resets the level of the ones already registered.
func Configure(opts LogOptions) {
	settingsMu.Lock()
	if opts.ConsoleFormat != "" {
		consoleFormat = normalizeFormat(opts.ConsoleFormat)
	}
	if opts.FileFormat != "" {
		fileFormat = normalizeFormat(opts.FileFormat)
	}
	fileEnabled = opts.FileEnabled
	if opts.FileDir != "" {
		fileDir = opts.FileDir
	}
	if opts.FileMaxAge > 0 {
		fileMaxAge = opts.FileMaxAge
	}
	settingsMu.Unlock()
	ConfigureLogLevel(opts.Level)
}

func normalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return "json"
	}
	return "text"
}

// ParseLogLevel converts a level name into a logrus level, defaulting to info.
func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// ConfigureLogLevel sets the console level and re-levels all registered loggers.
func ConfigureLogLevel(level string) {
	settingsMu.Lock()
	consoleLevel = ParseLogLevel(level)
	settingsMu.Unlock()

	base := baseLevel()
	registryMu.Lock()
	overrides = map[string]logrus.Level{}
	for _, l := range registry {
		l.SetLevel(base)
	}
	registryMu.Unlock()
}

// SetLoggerLevel changes the level of a single named logger.
func SetLoggerLevel(name string, level string) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	l, ok := registry[name]
	if !ok {
		return false
	}
	lvl := ParseLogLevel(level)
	overrides[name] = lvl
	l.SetLevel(lvl)
	return true
}

// baseLevel is the most verbose level any sink wants; sinks filter on their own.
func baseLevel() logrus.Level {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	if fileEnabled && fileLevel > consoleLevel {
		return fileLevel
	}
	return consoleLevel
}

// NewLogger returns the logger registered under name, creating it on first use.
// Output goes through hooks so console and file sinks can format and filter
// independently.
func NewLogger(name string) *logrus.Logger {
	registryMu.Lock()
	defer registryMu.Unlock()
	if l, ok := registry[name]; ok {
		return l
	}

	settingsMu.RLock()
	cf, ff, fe, dir, age := consoleFormat, fileFormat, fileEnabled, fileDir, fileMaxAge
	settingsMu.RUnlock()

	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetReportCaller(true)
	l.SetFormatter(newFormatter(name, cf, true))
	l.AddHook(&consoleHook{name: name, out: os.Stdout, formatter: l.Formatter})
	if fe {
		if hook, err := newFileHook(name, dir, ff, age); err == nil {
			l.AddHook(hook)
		}
	}
	registry[name] = l
	l.SetLevel(baseLevel())
	return l
}

func newFormatter(name, format string, console bool) logrus.Formatter {
	if format == "json" {
		return &JSONLogFormatter{LoggerName: name}
	}
	return &Log4jColorFormatter{
		LoggerName:  name,
		ColorOutput: console,
		NameWidth:   10,
		CallerWidth: 25,
	}
}

type consoleHook struct {
	name      string
	out       io.Writer
	formatter logrus.Formatter
}

func (h *consoleHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *consoleHook) Fire(e *logrus.Entry) error {
	if e.Level > h.level() {
		return nil
	}
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.out.Write(b)
	return err
}

func (h *consoleHook) level() logrus.Level {
	registryMu.RLock()
	lvl, ok := overrides[h.name]
	registryMu.RUnlock()
	if ok {
		return lvl
	}
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return consoleLevel
}
