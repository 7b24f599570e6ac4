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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/tomoncle/contactd/database"
	"github.com/tomoncle/contactd/types"
	"github.com/tomoncle/contactd/utils"
)

var log = utils.NewLogger("REPOSITORY")

type changeKind int

const (
	changeInsert changeKind = iota
	changeUpdate
	changeDelete
)

func (k changeKind) String() string {
	switch k {
	case changeInsert:
		return "insert"
	case changeUpdate:
		return "update"
	default:
		return "delete"
	}
}

type change[T any] struct {
	kind   changeKind
	entity *T
}

type unitOfWork[T any] struct {
	db      *bun.DB
	conn    *bun.Conn
	pending []change[T]
	tracked map[*T]struct{}
	closed  bool
}

// NewUnitOfWork returns a unit of work for T. The connection is taken from
// db's pool on first use and returned by Close.
func NewUnitOfWork[T any](db *bun.DB) UnitOfWork[T] {
	return &unitOfWork[T]{db: db, tracked: make(map[*T]struct{})}
}

func (u *unitOfWork[T]) session(ctx context.Context) (*bun.Conn, error) {
	if u.closed {
		return nil, ErrClosed
	}
	if u.conn == nil {
		conn, err := u.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire connection: %w", err)
		}
		u.conn = &conn
	}
	return u.conn, nil
}

func (u *unitOfWork[T]) track(entities ...*T) {
	for _, e := range entities {
		u.tracked[e] = struct{}{}
	}
}

func (u *unitOfWork[T]) selectQuery(ctx context.Context, model any, filter *types.QueryFilter, includes []string) (*bun.SelectQuery, error) {
	conn, err := u.session(ctx)
	if err != nil {
		return nil, err
	}
	q := conn.NewSelect().Model(model)
	for _, rel := range includes {
		q = q.Relation(rel)
	}
	if !filter.IsEmpty() {
		q = q.Where(filter.Where, filter.Args...)
	}
	return q, nil
}

func (u *unitOfWork[T]) GetByID(ctx context.Context, id any, includes ...string) (*T, error) {
	return u.FindBy(ctx, types.NewQueryFilter("?TableAlias.? = ?", bun.Ident(IDColumn), id), includes...)
}

func (u *unitOfWork[T]) GetAll(ctx context.Context, includes ...string) ([]*T, error) {
	return u.Search(ctx, nil, includes...)
}

func (u *unitOfWork[T]) Search(ctx context.Context, filter *types.QueryFilter, includes ...string) ([]*T, error) {
	entities := make([]*T, 0)
	q, err := u.selectQuery(ctx, &entities, filter, includes)
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	u.track(entities...)
	return entities, nil
}

func (u *unitOfWork[T]) FindBy(ctx context.Context, filter *types.QueryFilter, includes ...string) (*T, error) {
	entity := new(T)
	q, err := u.selectQuery(ctx, entity, filter, includes)
	if err != nil {
		return nil, err
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.track(entity)
	return entity, nil
}

func (u *unitOfWork[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	q, err := u.selectQuery(ctx, (*T)(nil), filter, nil)
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

func (u *unitOfWork[T]) Page(ctx context.Context, req *types.PageRequest) (*types.Pagination[T], error) {
	entities := make([]*T, 0)
	q, err := u.selectQuery(ctx, &entities, req.Filter(), nil)
	if err != nil {
		return nil, err
	}
	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return types.NewPagination[T](req, 0, nil), nil
	}
	if err := q.Order(req.Orders()...).Offset(req.Offset()).Limit(req.PageSize()).Scan(ctx); err != nil {
		return nil, err
	}
	u.track(entities...)
	return types.NewPagination(req, total, entities), nil
}

func (u *unitOfWork[T]) GetValue(ctx context.Context, column string, filter *types.QueryFilter, dest any) error {
	q, err := u.selectQuery(ctx, (*T)(nil), filter, nil)
	if err != nil {
		return err
	}
	err = q.Column(column).Limit(1).Scan(ctx, dest)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (u *unitOfWork[T]) stage(kind changeKind, entity *T) {
	u.pending = append(u.pending, change[T]{kind: kind, entity: entity})
	u.track(entity)
}

func (u *unitOfWork[T]) Add(entity *T) *T {
	if g, ok := any(entity).(KeyGenerator); ok {
		g.GenerateKey()
	}
	u.stage(changeInsert, entity)
	return entity
}

func (u *unitOfWork[T]) Update(entity *T) {
	u.stage(changeUpdate, entity)
}

func (u *unitOfWork[T]) Delete(entity *T) {
	u.stage(changeDelete, entity)
}

func (u *unitOfWork[T]) HasChanges() bool {
	return len(u.pending) > 0
}

func (u *unitOfWork[T]) SaveChanges(ctx context.Context) (affected int64, err error) {
	if len(u.pending) == 0 {
		if u.closed {
			return 0, ErrClosed
		}
		return 0, nil
	}
	conn, err := u.session(ctx)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, database.InnermostCause(err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.WithError(rbErr).Warn("rollback failed")
			}
		}
	}()

	for _, c := range u.pending {
		n, err := apply(ctx, tx, c)
		if err != nil {
			cause := database.InnermostCause(err)
			entry := log.WithError(cause).WithField("op", c.kind.String())
			if ok, kind := database.IsSqlError(cause); ok {
				entry = entry.WithField("sql_error", kind.String())
			}
			entry.Debug("save changes failed")
			return 0, cause
		}
		affected += n
	}
	if err := tx.Commit(); err != nil {
		return 0, database.InnermostCause(err)
	}
	committed = true

	log.WithFields(map[string]any{
		"changes":  len(u.pending),
		"affected": affected,
		"duration": time.Since(start),
	}).Debug("changes saved")
	u.pending = nil
	return affected, nil
}

func apply[T any](ctx context.Context, tx bun.Tx, c change[T]) (int64, error) {
	var (
		res sql.Result
		err error
	)
	switch c.kind {
	case changeInsert:
		res, err = tx.NewInsert().Model(c.entity).Exec(ctx)
	case changeUpdate:
		res, err = tx.NewUpdate().Model(c.entity).WherePK().Exec(ctx)
	case changeDelete:
		res, err = tx.NewDelete().Model(c.entity).WherePK().Exec(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.kind, err)
	}
	return rowsAffected(c.kind, res)
}

func rowsAffected(kind changeKind, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", kind, err)
	}
	return n, nil
}

// DiscardChanges drops the staged changes and stops tracking their entities.
func (u *unitOfWork[T]) DiscardChanges() {
	for _, c := range u.pending {
		delete(u.tracked, c.entity)
	}
	u.pending = nil
}

func (u *unitOfWork[T]) Close() error {
	if u.closed {
		return nil
	}
	var err error
	if len(u.pending) > 0 {
		log.WithField("changes", len(u.pending)).Warn("unit of work closed with uncommitted changes")
		u.DiscardChanges()
		err = ErrUncommittedChanges
	}
	clear(u.tracked)
	u.closed = true
	if u.conn != nil {
		if cerr := u.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		u.conn = nil
	}
	return err
}
