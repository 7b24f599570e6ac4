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
	"io"
	"reflect"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

type quietKey struct{}

// Quiet marks ctx so the query hooks stay silent, used while migrating.
func Quiet(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func isQuiet(ctx context.Context) bool {
	q, _ := ctx.Value(quietKey{}).(bool)
	return q
}

var opColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

// QueryHook prints every query coloured by operation while enabled returns true.
// Failed queries are printed with the error type on a red background.
type QueryHook struct {
	writer  io.Writer
	enabled func() bool
}

var _ bun.QueryHook = (*QueryHook)(nil)

func NewQueryHook(w io.Writer, enabled func() bool) *QueryHook {
	return &QueryHook{writer: w, enabled: enabled}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if isQuiet(ctx) || (h.enabled != nil && !h.enabled()) {
		return
	}
	now := time.Now()
	c, ok := opColors[event.Operation()]
	if !ok {
		c = color.New(color.FgRed)
	}
	line := fmt.Sprintf("%s %s %12s  %s",
		now.Format("2006-01-02 15:04:05.000"),
		color.New(color.FgCyan).Sprint("[BUN]"),
		now.Sub(event.StartTime).Round(time.Microsecond),
		c.Sprint(event.Query),
	)
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		line += "\t" + color.New(color.BgRed, color.FgWhite).Sprintf(" %s: %s ", reflect.TypeOf(event.Err), event.Err)
	}
	_, _ = fmt.Fprintln(h.writer, line)
}

type slowQueryHook struct {
	threshold time.Duration
	logger    Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil || isQuiet(ctx) || h.logger == nil {
		return
	}
	if d := time.Since(event.StartTime); d > h.threshold {
		h.logger.Warn("Slow query detected",
			"duration", d,
			"threshold", h.threshold,
			"query", event.Query,
		)
	}
}
