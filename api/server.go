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
	"encoding/json"
	"io"
	stdlog "log"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/sirupsen/logrus"

	"github.com/tomoncle/contactd/config"
	"github.com/tomoncle/contactd/cqrs"
	"github.com/tomoncle/contactd/database"
	"github.com/tomoncle/contactd/utils"
)

type Dependencies struct {
	Dispatcher *cqrs.Dispatcher
	// Health backs /readiness. Nil reports ready.
	Health func(context.Context) *database.HealthStatus
	// Metrics is written to /metrics along with the process metrics.
	Metrics *metrics.Set
	Logger  *logrus.Logger
}

// NewHandler wires the contact endpoints under /api.
func NewHandler(title, version string, deps Dependencies) http.Handler {
	log := deps.Logger
	if log == nil {
		log = utils.NewLogger("HTTP")
	}
	set := deps.Metrics
	if set == nil {
		set = metrics.NewSet()
	}
	contacts := &Contacts{Dispatcher: deps.Dispatcher, ErrorHandler: errorHandler(log)}

	return New(title, version,
		readiness(deps.Health),
		func(w io.Writer) {
			set.WritePrometheus(w)
			metrics.WriteProcessMetrics(w)
		},
		OptGroup("/api",
			OptUseMiddleware(
				loggerMiddleware(log),
				meterRequests(set),
				recoverMiddleware(log),
			),
			OptRegister(contacts.Register),
		),
	)
}

func readiness(health func(context.Context) *database.HealthStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health == nil {
			return
		}
		status := health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status == nil || !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}

func NewServer(cfg config.ServerConfig, handler http.Handler, logger *logrus.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ErrorLog:          stdlog.New(logger.WriterLevel(logrus.ErrorLevel), "", 0),
	}
}
