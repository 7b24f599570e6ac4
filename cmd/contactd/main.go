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

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/tomoncle/contactd/api"
	"github.com/tomoncle/contactd/database"
	"github.com/tomoncle/contactd/utils"
)

const (
	title   = "contactd"
	version = "1.0.0"
)

var log = utils.NewLogger("MAIN")

// Options for the CLI. Pass `--config` or set the `SERVICE_CONFIG` env var.
type Options struct {
	Config string `short:"c" doc:"path to the YAML configuration file" default:""`
	Port   int    `short:"p" doc:"port to listen on, overrides server.port" default:"0"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		var (
			srv *http.Server
			svc *service
		)
		hooks.OnStart(func() {
			var err error
			svc, err = newService(context.Background(), options)
			if err != nil {
				log.WithError(err).Fatal("startup failed")
			}
			srv = api.NewServer(svc.cfg.Server, svc.handler(), log)
			log.Infof("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("failed to listen and serve")
			} else {
				log.Info("server closed")
			}
		})
		hooks.OnStop(func() {
			if srv == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), svc.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.WithError(err).Warn("could not shutdown the server")
			}
			if err := svc.Close(); err != nil {
				log.WithError(err).Warn("could not close the database")
			}
		})
	})

	cli.Root().Use = title
	cli.Root().Version = version
	cli.Root().AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending schema migrations and exit",
			Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, options *Options) {
				run(options, func(cfg *database.Config) {
					cfg.Migrate.EnableMigrateOnStartup = true
					cfg.Seed.AutoSeedOnStartup = false
				})
			}),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Migrate, run the SQL seed scripts and exit",
			Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, options *Options) {
				run(options, func(cfg *database.Config) {
					cfg.Migrate.EnableMigrateOnStartup = true
					cfg.Seed.AutoSeedOnStartup = true
				})
			}),
		},
	)
	cli.Run()
}

// run initializes the database with the adjusted configuration, then closes it.
func run(options *Options, adjust func(*database.Config)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := initDatabase(ctx, options, adjust); err != nil {
		log.WithError(err).Fatal("database initialization failed")
	}
	log.Info("done")
}
