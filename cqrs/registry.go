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
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/tomoncle/contactd/utils"
)

var log = utils.NewLogger("CQRS")

var (
	ErrHandlerNotFound = errors.New("cqrs: no handler registered")
	ErrRegistryFrozen  = errors.New("cqrs: registry is frozen")
)

// CommandHandler runs a command that produces no result.
type CommandHandler[C any] interface {
	Handle(ctx context.Context, cmd C) error
}

// CommandResultHandler runs a command and returns its result.
type CommandResultHandler[C, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// QueryHandler runs a read-only query.
type QueryHandler[Q, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

type kind int

const (
	kindCommand kind = iota
	kindCommandResult
	kindQuery
)

func (k kind) String() string {
	switch k {
	case kindCommand:
		return "command"
	case kindCommandResult:
		return "command_result"
	default:
		return "query"
	}
}

type bindingKey struct {
	kind   kind
	req    reflect.Type
	result reflect.Type
}

func (k bindingKey) String() string {
	if k.result == nil {
		return fmt.Sprintf("%s %s", k.kind, k.req)
	}
	return fmt.Sprintf("%s %s -> %s", k.kind, k.req, k.result)
}

type invokeFunc func(ctx context.Context, req any) (any, error)

type binding struct {
	handler string
	invoke  invokeFunc
}

// Registry holds the request to handler bindings built at startup.
type Registry struct {
	mu       sync.Mutex
	bindings map[bindingKey]binding
	frozen   bool
}

func NewRegistry() *Registry {
	return &Registry{bindings: make(map[bindingKey]binding)}
}

func (r *Registry) add(key bindingKey, handler string, invoke invokeFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("%w: cannot bind %s", ErrRegistryFrozen, key)
	}
	if prev, ok := r.bindings[key]; ok {
		log.WithFields(map[string]any{
			"request": key.String(),
			"kept":    prev.handler,
			"ignored": handler,
		}).Warn("duplicate handler registration ignored")
		return nil
	}
	r.bindings[key] = binding{handler: handler, invoke: invoke}
	log.WithField("request", key.String()).Debugf("bound to %s", handler)
	return nil
}

func (r *Registry) snapshot() map[bindingKey]binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	out := make(map[bindingKey]binding, len(r.bindings))
	for k, v := range r.bindings {
		out[k] = v
	}
	return out
}

// handlerName names the concrete type a handler constructor produces.
func handlerName[H any](newHandler func() H) string {
	return fmt.Sprintf("%T", newHandler())
}

// RegisterCommand binds C to the handlers produced by newHandler.
// A second binding for the same command is logged and ignored.
func RegisterCommand[C any](reg *Registry, newHandler func() CommandHandler[C]) error {
	key := bindingKey{kind: kindCommand, req: reflect.TypeFor[C]()}
	return reg.add(key, handlerName(newHandler), func(ctx context.Context, req any) (any, error) {
		return nil, newHandler().Handle(ctx, req.(C))
	})
}

// RegisterCommandFor binds C with result type R to the handlers produced by
// newHandler.
func RegisterCommandFor[C, R any](reg *Registry, newHandler func() CommandResultHandler[C, R]) error {
	key := bindingKey{kind: kindCommandResult, req: reflect.TypeFor[C](), result: reflect.TypeFor[R]()}
	return reg.add(key, handlerName(newHandler), func(ctx context.Context, req any) (any, error) {
		return newHandler().Handle(ctx, req.(C))
	})
}

// RegisterQuery binds Q with result type R to the handlers produced by
// newHandler.
func RegisterQuery[Q, R any](reg *Registry, newHandler func() QueryHandler[Q, R]) error {
	key := bindingKey{kind: kindQuery, req: reflect.TypeFor[Q](), result: reflect.TypeFor[R]()}
	return reg.add(key, handlerName(newHandler), func(ctx context.Context, req any) (any, error) {
		return newHandler().Handle(ctx, req.(Q))
	})
}
