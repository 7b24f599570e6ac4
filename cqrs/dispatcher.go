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

package cqrs

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Dispatcher resolves requests against a frozen snapshot of a Registry.
// It is safe for concurrent use.
type Dispatcher struct {
	bindings map[bindingKey]binding
	metrics  *metrics.Set
}

type Option func(*Dispatcher)

// WithMetrics counts dispatches and failures in set.
func WithMetrics(set *metrics.Set) Option {
	return func(d *Dispatcher) { d.metrics = set }
}

// NewDispatcher freezes reg. Later registrations fail with ErrRegistryFrozen.
func NewDispatcher(reg *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{bindings: reg.snapshot()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) dispatch(ctx context.Context, key bindingKey, req any) (any, error) {
	b, ok := d.bindings[key]
	if !ok {
		log.WithField("request", key.String()).Error("no handler bound")
		return nil, fmt.Errorf("%w for %s", ErrHandlerNotFound, key)
	}

	start := time.Now()
	res, err := b.invoke(ctx, req)
	elapsed := time.Since(start)

	if d.metrics != nil {
		labels := fmt.Sprintf(`{kind=%q,request=%q}`, key.kind, key.req.String())
		d.metrics.GetOrCreateCounter("cqrs_dispatch_total" + labels).Inc()
		if err != nil {
			d.metrics.GetOrCreateCounter("cqrs_dispatch_errors_total" + labels).Inc()
		}
	}
	entry := log.WithFields(map[string]any{
		"request":  key.req.String(),
		"handler":  b.handler,
		"duration": elapsed,
	})
	if err != nil {
		entry.WithError(err).Debug("dispatch failed")
	} else {
		entry.Debug("dispatched")
	}
	return res, err
}

// Send runs the handler bound to command C.
func Send[C any](ctx context.Context, d *Dispatcher, cmd C) error {
	_, err := d.dispatch(ctx, bindingKey{kind: kindCommand, req: reflect.TypeFor[C]()}, cmd)
	return err
}

// SendFor runs the handler bound to command C with result R.
func SendFor[C, R any](ctx context.Context, d *Dispatcher, cmd C) (R, error) {
	key := bindingKey{kind: kindCommandResult, req: reflect.TypeFor[C](), result: reflect.TypeFor[R]()}
	return result[R](d.dispatch(ctx, key, cmd))
}

// Ask runs the handler bound to query Q with result R.
func Ask[Q, R any](ctx context.Context, d *Dispatcher, query Q) (R, error) {
	key := bindingKey{kind: kindQuery, req: reflect.TypeFor[Q](), result: reflect.TypeFor[R]()}
	return result[R](d.dispatch(ctx, key, query))
}

func result[R any](v any, err error) (R, error) {
	var zero R
	if err != nil {
		if r, ok := v.(R); ok {
			return r, err
		}
		return zero, err
	}
	r, _ := v.(R)
	return r, nil
}
