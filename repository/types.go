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
	"context"
	"errors"

	"github.com/tomoncle/contactd/types"
)

// IDColumn is the primary key column every repository entity uses.
const IDColumn = "id"

var (
	ErrNotFound           = errors.New("repository: entity not found")
	ErrNotRegistered      = errors.New("repository: no constructor registered")
	ErrAlreadyRegistered  = errors.New("repository: constructor already registered")
	ErrRegistryFrozen     = errors.New("repository: registry is frozen")
	ErrUncommittedChanges = errors.New("repository: closed with uncommitted changes")
	ErrClosed             = errors.New("repository: unit of work is closed")
)

// KeyGenerator is implemented by entities that assign their own primary key.
// Add calls GenerateKey before staging the insert.
type KeyGenerator interface {
	GenerateKey()
}

// Reader loads entities. includes name bun relations to eager-load.
// Every entity returned is tracked by the unit of work.
type Reader[T any] interface {
	GetByID(ctx context.Context, id any, includes ...string) (*T, error)
	GetAll(ctx context.Context, includes ...string) ([]*T, error)
	Search(ctx context.Context, filter *types.QueryFilter, includes ...string) ([]*T, error)
	// FindBy returns the first match or ErrNotFound.
	FindBy(ctx context.Context, filter *types.QueryFilter, includes ...string) (*T, error)
	Count(ctx context.Context, filter *types.QueryFilter) (int, error)
	Page(ctx context.Context, req *types.PageRequest) (*types.Pagination[T], error)
	// GetValue scans column of the first match into dest, or returns ErrNotFound.
	GetValue(ctx context.Context, column string, filter *types.QueryFilter, dest any) error
}

// Writer stages inserts and updates. Nothing reaches the store before SaveChanges.
type Writer[T any] interface {
	Add(entity *T) *T
	Update(entity *T)
}

// Deleter stages deletes.
type Deleter[T any] interface {
	Delete(entity *T)
}

// Saver commits or drops the staged changes and releases the connection.
type Saver interface {
	// SaveChanges applies the staged changes in one transaction in the order
	// they were staged and returns the affected row count. On failure nothing
	// is applied, the changes stay staged and the innermost cause is returned.
	SaveChanges(ctx context.Context) (int64, error)
	DiscardChanges()
	HasChanges() bool
	// Close never commits. Staged changes are discarded and reported as
	// ErrUncommittedChanges.
	Close() error
}

// UnitOfWork is a generic repository bound to one database connection for the
// length of one logical operation. It is not safe for concurrent use.
type UnitOfWork[T any] interface {
	Reader[T]
	Writer[T]
	Deleter[T]
	Saver
}
