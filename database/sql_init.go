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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/uptrace/bun"
)

const (
	commonEnvironment = "common"
	unorderedFile     = 999
)

var (
	fileOrderRe = regexp.MustCompile(`^(\d+)_`)
	goBatchRe   = regexp.MustCompile(`(?i)^go;?$`)
)

// SQLInitManager executes the seed scripts under <root>/common and
// <root>/environments/<environment>, each directory ordered by the NNN_ prefix
// of the file names.
type SQLInitManager struct {
	environment string
	sqlRootPath string
	logger      Logger
}

// SQLFileInfo describes one script found on disk.
type SQLFileInfo struct {
	Path        string
	Name        string
	Order       int
	Environment string
}

// ExecutionResult is the outcome of one script.
type ExecutionResult struct {
	File         string
	Statements   int
	RowsAffected int64
	Duration     time.Duration
	Err          error
}

func NewSQLInitManager(environment string) *SQLInitManager {
	if environment == "" {
		environment = "prod"
	}
	return &SQLInitManager{
		environment: environment,
		sqlRootPath: "configs/sql",
		logger:      GetLogger(),
	}
}

func (s *SQLInitManager) SetSQLRootPath(path string) {
	s.sqlRootPath = path
}

// Execute runs every script on db, stopping at the first failure. Pass a
// bun.Tx to make the whole seed atomic.
func (s *SQLInitManager) Execute(ctx context.Context, db bun.IDB) error {
	files, err := s.GetSQLFiles()
	if err != nil {
		return fmt.Errorf("failed to list SQL files: %w", err)
	}
	if len(files) == 0 {
		s.logger.Info("No SQL files to execute", "sql_path", s.sqlRootPath, "environment", s.environment)
		return nil
	}

	for _, f := range files {
		res := s.executeFile(ctx, db, f)
		if res.Err != nil {
			s.logger.Error("SQL file execution failed", "file", res.File, "error", res.Err)
			return fmt.Errorf("SQL file %s: %w", res.File, res.Err)
		}
		s.logger.Info("SQL file executed",
			"file", res.File,
			"statements", res.Statements,
			"rows_affected", res.RowsAffected,
			"duration", res.Duration,
		)
	}
	s.logger.Info("SQL initialization completed", "files", len(files), "environment", s.environment)
	return nil
}

// GetSQLFiles returns the common scripts followed by the environment scripts.
// A missing directory contributes nothing.
func (s *SQLInitManager) GetSQLFiles() ([]SQLFileInfo, error) {
	common, err := s.filesIn(filepath.Join(s.sqlRootPath, commonEnvironment), commonEnvironment)
	if err != nil {
		return nil, err
	}
	env, err := s.filesIn(filepath.Join(s.sqlRootPath, "environments", s.environment), s.environment)
	if err != nil {
		return nil, err
	}
	return append(common, env...), nil
}

func (s *SQLInitManager) filesIn(dir, environment string) ([]SQLFileInfo, error) {
	var files []SQLFileInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".sql") {
			return nil
		}
		files = append(files, SQLFileInfo{
			Path:        path,
			Name:        d.Name(),
			Order:       parseFileOrder(d.Name()),
			Environment: environment,
		})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func parseFileOrder(name string) int {
	m := fileOrderRe.FindStringSubmatch(name)
	if m == nil {
		return unorderedFile
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return unorderedFile
	}
	return n
}

func (s *SQLInitManager) executeFile(ctx context.Context, db bun.IDB, f SQLFileInfo) ExecutionResult {
	start := time.Now()
	res := ExecutionResult{File: f.Path}

	content, err := os.ReadFile(f.Path)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	text, err := s.expandTemplate(string(content))
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	for _, stmt := range SplitSQLStatements(text) {
		r, err := db.ExecContext(ctx, stmt)
		if err != nil {
			res.Err = fmt.Errorf("statement %d: %w", res.Statements+1, err)
			res.Duration = time.Since(start)
			return res
		}
		res.Statements++
		if n, err := r.RowsAffected(); err == nil {
			res.RowsAffected += n
		}
	}
	res.Duration = time.Since(start)
	return res
}

// expandTemplate substitutes {{.ENVIRONMENT}}, {{.TIMESTAMP}} and environment
// variables in scripts that use template syntax.
func (s *SQLInitManager) expandTemplate(content string) (string, error) {
	if !strings.Contains(content, "{{") {
		return content, nil
	}
	tmpl, err := template.New("sql").Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	vars["ENVIRONMENT"] = s.environment
	vars["TIMESTAMP"] = time.Now().Format("2006-01-02 15:04:05")

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// SplitSQLStatements splits a script into executable batches. A script that
// contains a line reading GO or GO; is split on those lines only, so a batch
// may hold several statements. Otherwise every line ending in ';' closes a
// statement. Blank lines and "--" comment lines are dropped.
func SplitSQLStatements(content string) []string {
	var lines []string
	batched := false
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if goBatchRe.MatchString(line) {
			batched = true
		}
		lines = append(lines, line)
	}

	var out []string
	var cur strings.Builder
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" {
			out = append(out, stmt)
		}
		cur.Reset()
	}
	for _, line := range lines {
		if batched {
			if goBatchRe.MatchString(line) {
				flush()
				continue
			}
			cur.WriteString(line)
			cur.WriteByte('\n')
			continue
		}
		cur.WriteString(line)
		cur.WriteByte(' ')
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	flush()
	return out
}
