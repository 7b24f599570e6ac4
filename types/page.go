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

package types

const (
	DefaultPageSize = 10
	MaxPageSize     = 1000
)

// QueryFilter is a WHERE fragment with its placeholder arguments,
// e.g. NewQueryFilter("status = ?", 0).
type QueryFilter struct {
	Where string
	Args  []any
}

func NewQueryFilter(where string, args ...any) *QueryFilter {
	return &QueryFilter{Where: where, Args: args}
}

// IsEmpty reports whether f adds no condition.
func (f *QueryFilter) IsEmpty() bool {
	return f == nil || f.Where == ""
}

// PageRequest selects one page of a result set. Orders hold ORDER BY
// expressions such as "last_name ASC".
type PageRequest struct {
	page     int
	pageSize int
	filter   *QueryFilter
	orders   []string
}

func NewPageRequest(page, pageSize int, filter *QueryFilter, orders ...string) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize, filter: filter, orders: orders}
}

// Page is 1-based; anything below 1 reads as 1.
func (p *PageRequest) Page() int {
	if p.page < 1 {
		return 1
	}
	return p.page
}

// PageSize falls back to DefaultPageSize and is capped at MaxPageSize.
func (p *PageRequest) PageSize() int {
	switch {
	case p.pageSize < 1:
		return DefaultPageSize
	case p.pageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.pageSize
	}
}

func (p *PageRequest) Offset() int {
	return (p.Page() - 1) * p.PageSize()
}

func (p *PageRequest) Filter() *QueryFilter {
	return p.filter
}

func (p *PageRequest) Orders() []string {
	return p.orders
}

// Pagination is one page of items plus the totals of the whole result set.
type Pagination[T any] struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	Items      []*T `json:"items"`
}

func NewPagination[T any](req *PageRequest, total int, items []*T) *Pagination[T] {
	if items == nil {
		items = make([]*T, 0)
	}
	size := req.PageSize()
	return &Pagination[T]{
		Page:       req.Page(),
		PageSize:   size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
		Items:      items,
	}
}

// MapPagination converts the items of p with fn, keeping the totals.
func MapPagination[T, U any](p *Pagination[T], fn func(*T) *U) *Pagination[U] {
	out := &Pagination[U]{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		Items:      make([]*U, 0, len(p.Items)),
	}
	for _, item := range p.Items {
		out.Items = append(out.Items, fn(item))
	}
	return out
}
