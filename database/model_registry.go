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
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = &modelRegistry{}

// SQLModel is a bun model whose table is created by the base migration.
// Lower priorities are created first.
type SQLModel interface {
	Instance() any
	Priority() int
}

type modelAdapter struct {
	instance any
	priority int
}

func (a modelAdapter) Instance() any { return a.instance }
func (a modelAdapter) Priority() int { return a.priority }

// NewModelAdapter wraps a model pointer, e.g. (*Contact)(nil), into an SQLModel.
func NewModelAdapter(instance any, priority int) SQLModel {
	return modelAdapter{instance: instance, priority: priority}
}

type modelRegistry struct {
	mu     sync.RWMutex
	models []SQLModel
}

// register ignores a model whose type is already present.
func (r *modelRegistry) register(m SQLModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := reflect.TypeOf(m.Instance())
	for _, existing := range r.models {
		if reflect.TypeOf(existing.Instance()) == t {
			return
		}
	}
	r.models = append(r.models, m)
}

func (r *modelRegistry) sorted() []SQLModel {
	r.mu.RLock()
	out := make([]SQLModel, len(r.models))
	copy(out, r.models)
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}

// RegisterModel adds a model to the set created by the base migration.
func RegisterModel(instance any, priority int) {
	defaultRegistry.register(NewModelAdapter(instance, priority))
}

func GetRegisteredModels() []SQLModel {
	return defaultRegistry.sorted()
}

func RegisteredModelInstances() []any {
	models := defaultRegistry.sorted()
	out := make([]any, len(models))
	for i, m := range models {
		out[i] = m.Instance()
	}
	return out
}
