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

package repository

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/uptrace/bun"
)

type constructor func(db *bun.DB) any

// Registry maps repository interface types to their constructors. It is
// filled at startup and frozen when a Factory is built from it.
type Registry struct {
	mu     sync.RWMutex
	ctors  map[reflect.Type]constructor
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[reflect.Type]constructor)}
}

// Register binds the repository type R, usually an interface, to ctor.
func Register[R any](reg *Registry, ctor func(db *bun.DB) R) error {
	t := reflect.TypeFor[R]()
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.frozen {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, t)
	}
	if _, ok := reg.ctors[t]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, t)
	}
	reg.ctors[t] = func(db *bun.DB) any { return ctor(db) }
	return nil
}

func (r *Registry) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Registry) lookup(t reflect.Type) (constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.ctors[t]
	return c, ok
}

// Factory hands out a new repository instance per call.
type Factory interface {
	Resolve(t reflect.Type) (any, error)
}

type registryFactory struct {
	db  *bun.DB
	reg *Registry
}

// NewFactory freezes reg and returns a Factory whose repositories use db.
func NewFactory(db *bun.DB, reg *Registry) Factory {
	reg.freeze()
	return &registryFactory{db: db, reg: reg}
}

func (f *registryFactory) Resolve(t reflect.Type) (any, error) {
	ctor, ok := f.reg.lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	return ctor(f.db), nil
}

// Create returns a new R from f. The caller owns it and must Close it.
func Create[R any](f Factory) (R, error) {
	var zero R
	v, err := f.Resolve(reflect.TypeFor[R]())
	if err != nil {
		return zero, err
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("repository: constructor for %s returned %T", reflect.TypeFor[R](), v)
	}
	return r, nil
}
