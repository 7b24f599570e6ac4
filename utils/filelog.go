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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const dayLayout = "2006-01-02"

// dailyFile appends to <dir>/<yyyy-mm-dd>/<name>.log and rolls over at
// midnight, pruning day directories older than maxAge days.
type dailyFile struct {
	dir    string
	name   string
	maxAge int

	mu   sync.Mutex
	day  string
	file *os.File
	now  func() time.Time
}

func (w *dailyFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := w.now().Format(dayLayout)
	if w.file == nil || w.day != today {
		if w.file != nil {
			_ = w.file.Close()
			w.file = nil
		}
		dayDir := filepath.Join(w.dir, today)
		if err := os.MkdirAll(dayDir, 0o755); err != nil {
			return 0, err
		}
		f, err := os.OpenFile(filepath.Join(dayDir, w.name+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		rolled := w.day != ""
		w.file, w.day = f, today
		if rolled {
			w.prune()
		}
	}
	return w.file.Write(p)
}

func (w *dailyFile) prune() {
	if w.maxAge <= 0 {
		return
	}
	cutoff := w.now().AddDate(0, 0, -w.maxAge).Format(dayLayout)
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(dayLayout, e.Name()); err != nil {
			continue
		}
		// yyyy-mm-dd compares lexically
		if e.Name() < cutoff {
			_ = os.RemoveAll(filepath.Join(w.dir, e.Name()))
		}
	}
}

type fileHook struct {
	w         *dailyFile
	formatter logrus.Formatter
}

func newFileHook(name, dir, format string, maxAge int) (*fileHook, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	file := strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	var f logrus.Formatter
	if format == "json" {
		f = &JSONLogFormatter{LoggerName: name}
	} else {
		f = &Log4jColorFormatter{LoggerName: name, NameWidth: 10}
	}
	return &fileHook{
		w:         &dailyFile{dir: dir, name: file, maxAge: maxAge, now: time.Now},
		formatter: f,
	}, nil
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	if e.Level > fileLevel {
		return nil
	}
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}
