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

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"github.com/tomoncle/contactd/database"
	"github.com/tomoncle/contactd/utils"
)

// ctxlog is the context key of the request scoped log entry.
type ctxlog struct{}

func entryFrom(ctx context.Context, fallback *logrus.Logger) *logrus.Entry {
	if e, ok := ctx.Value(ctxlog{}).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(fallback)
}

// loggerMiddleware stores a log entry in the request context and logs the
// request once it has been served.
func loggerMiddleware(log *logrus.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		entry := log.WithFields(logrus.Fields{
			"request_id": ctx.Header("X-Request-Id"),
			"operation":  op.OperationID,
		})

		start := time.Now()
		next(huma.WithValue(ctx, ctxlog{}, entry))
		latency := time.Since(start)

		u := ctx.URL()
		entry.WithFields(logrus.Fields{
			"req_method":   ctx.Method(),
			"req_uri":      u.RequestURI(),
			"status_code":  ctx.Status(),
			"latency_time": utils.FormatLatency(latency),
			"client_ip":    clientIP(ctx),
		}).Info(strings.Join([]string{op.Method, op.Path, ctx.Version().Proto}, " "))
	}
}

func clientIP(ctx huma.Context) string {
	if fwd := ctx.Header("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	if ip := ctx.Header("X-Real-Ip"); ip != "" {
		return ip
	}
	host := ctx.RemoteAddr()
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

// recoverMiddleware logs a panic and answers 500.
func recoverMiddleware(fallback *logrus.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			if v := recover(); v != nil {
				entryFrom(ctx.Context(), fallback).WithField("recovered", v).Error("panic occurred")
				ctx.SetStatus(http.StatusInternalServerError)
			}
		}()
		next(ctx)
	}
}

// errorHandler logs the error a handler returned, at warn level for client
// errors and at error level otherwise. Store errors carry their kind.
func errorHandler(fallback *logrus.Logger) func(context.Context, error) {
	return func(ctx context.Context, err error) {
		status := http.StatusInternalServerError
		var statusErr huma.StatusError
		if errors.As(statusError(err), &statusErr) {
			status = statusErr.GetStatus()
		}
		entry := entryFrom(ctx, fallback).WithError(err).WithField("status_code", status)
		if status < http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		if ok, kind := database.IsSqlError(err); ok {
			entry = entry.WithField("sql_error", kind.String())
		}
		entry.Error("request failed")
	}
}

func meterRequests(set *metrics.Set) func(huma.Context, func(huma.Context)) {
	type ref struct {
		*metrics.Counter
		*metrics.PrometheusHistogram
	}

	refs := sync.Map{}
	refsMu := sync.Mutex{}
	buckets := metrics.ExponentialBuckets(1e-3, 5, 6)

	return func(ctx huma.Context, next func(huma.Context)) {
		op, start := ctx.Operation(), time.Now()
		next(ctx)

		uid := op.OperationID + strconv.Itoa(ctx.Status())
		val, ok := refs.Load(uid)
		if !ok {
			refsMu.Lock()
			val, ok = refs.Load(uid)
			if !ok {
				labels := fmt.Sprintf(`{method=%q,path=%q,status="%d"}`, op.Method, op.Path, ctx.Status())
				val = ref{
					set.GetOrCreateCounter("http_requests_total" + labels),
					set.GetOrCreatePrometheusHistogramExt("http_request_duration_seconds"+labels, buckets),
				}
				refs.Store(uid, val)
			}
			refsMu.Unlock()
		}
		r := val.(ref)
		r.Counter.Inc()
		r.PrometheusHistogram.UpdateDuration(start)
	}
}
