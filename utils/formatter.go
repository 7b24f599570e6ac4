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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000"

var (
	faint   = color.New(color.Faint)
	magenta = color.New(color.FgMagenta)
	cyan    = color.New(color.FgCyan)
)

// Log4jColorFormatter renders entries as
// "time LEVEL pid - [main] name caller : message k=v ...".
type Log4jColorFormatter struct {
	LoggerName  string
	ColorOutput bool
	NameWidth   int
	CallerWidth int
}

func (f *Log4jColorFormatter) paint(s string, c *color.Color) string {
	if !f.ColorOutput {
		return s
	}
	return c.Sprint(s)
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(entry.Time.Format(timestampFormat))
	b.WriteByte(' ')
	b.WriteString(f.paint(fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String())), levelColor(entry.Level)))
	b.WriteByte(' ')
	b.WriteString(f.paint(fmt.Sprintf("%-6d", os.Getpid()), magenta))
	b.WriteString(" - ")
	b.WriteString(f.paint("[main]", magenta))
	b.WriteByte(' ')
	b.WriteString(f.paint(fmt.Sprintf("%*s", f.NameWidth, truncate(f.LoggerName, f.NameWidth)), cyan))
	if entry.Caller != nil {
		caller := fmt.Sprintf("%s:%d", compactPath(callerPath(entry.Caller.File), f.CallerWidth), entry.Caller.Line)
		if f.CallerWidth > 0 {
			caller = fmt.Sprintf("%*s", f.CallerWidth, caller)
		}
		b.WriteString(f.paint(" "+caller, faint))
	}
	b.WriteString(f.paint(" :", faint))
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
		}
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// JSONLogFormatter writes one JSON object per entry. The HTTP access fields
// set by the request middleware are lifted to top-level keys.
type JSONLogFormatter struct {
	LoggerName string
}

type jsonLogRecord struct {
	Time        string         `json:"time"`
	Level       string         `json:"level"`
	Model       string         `json:"model"`
	Caller      string         `json:"caller,omitempty"`
	Message     string         `json:"message"`
	ClientIP    string         `json:"client_ip,omitempty"`
	Method      string         `json:"method,omitempty"`
	Path        string         `json:"path,omitempty"`
	StatusCode  int            `json:"status_code,omitempty"`
	LatencyTime string         `json:"latency_time,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	rec := jsonLogRecord{
		Time:    entry.Time.Format(timestampFormat),
		Level:   entry.Level.String(),
		Model:   f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = fmt.Sprintf("%s:%d", callerPath(entry.Caller.File), entry.Caller.Line)
	}

	extra := make(map[string]any, len(entry.Data))
	for k, v := range entry.Data {
		s, isString := v.(string)
		switch {
		case k == "req_uri" && isString:
			rec.Path = s
		case k == "req_method" && isString:
			rec.Method = s
		case k == "client_ip" && isString:
			rec.ClientIP = s
		case k == "latency_time" && isString:
			rec.LatencyTime = s
		case k == "status_code":
			if n, ok := v.(int); ok {
				rec.StatusCode = n
			} else {
				extra[k] = v
			}
		case k == logrus.ErrorKey:
			if err, ok := v.(error); ok {
				extra[k] = err.Error()
			} else {
				extra[k] = v
			}
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		rec.Fields = extra
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func levelColor(level logrus.Level) *color.Color {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return color.New(color.FgRed)
	case logrus.WarnLevel:
		return color.New(color.FgYellow)
	case logrus.InfoLevel:
		return color.New(color.FgGreen)
	case logrus.DebugLevel:
		return color.New(color.FgBlue)
	default:
		return magenta
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

// callerPath trims the build directory so paths read relative to the module.
func callerPath(file string) string {
	p := filepath.ToSlash(file)
	if wd, err := os.Getwd(); err == nil {
		wd = filepath.ToSlash(wd) + "/"
		if strings.HasPrefix(p, wd) {
			return strings.TrimPrefix(p, wd)
		}
	}
	parts := strings.Split(p, "/")
	if len(parts) > 3 {
		return strings.Join(parts[len(parts)-3:], "/")
	}
	return p
}

// compactPath shortens a/b/c/file.go to a.b.c.file.go and, when still too
// long, abbreviates the directories to their first letter.
func compactPath(p string, max int) string {
	parts := strings.Split(p, "/")
	out := strings.Join(parts, ".")
	if max <= 0 || len(out) <= max {
		return out
	}
	for i := 0; i < len(parts)-1; i++ {
		if r := []rune(parts[i]); len(r) > 0 {
			parts[i] = string(r[0])
		}
	}
	out = strings.Join(parts, ".")
	if len(out) > max {
		r := []rune(out)
		return string(r[len(r)-max:])
	}
	return out
}

// FormatLatency renders a request duration for the access log.
func FormatLatency(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}
