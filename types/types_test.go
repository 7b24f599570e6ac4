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

import "testing"

type color int

const (
	red color = iota
	green
)

func (c color) IsValid() bool  { return c == red || c == green }
func (c color) Number() int    { return int(c) }
func (c color) String() string { return c.Name() }
func (c color) Desc() string   { return c.Name() }
func (c color) Name() string {
	switch c {
	case red:
		return "Red"
	case green:
		return "Green"
	}
	return IllegalName
}

func TestParseEnum(t *testing.T) {
	members := []color{red, green}
	cases := []struct {
		in   string
		want color
		ok   bool
	}{
		{"Red", red, true},
		{"  Green ", green, true},
		{"1", green, true},
		{"green", 0, false},
		{"7", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseEnum(tc.in, members)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseEnum(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPageRequestDefaults(t *testing.T) {
	p := NewPageRequest(0, 0, nil)
	if p.Page() != 1 || p.PageSize() != DefaultPageSize || p.Offset() != 0 {
		t.Fatalf("defaults: page=%d size=%d offset=%d", p.Page(), p.PageSize(), p.Offset())
	}
	p = NewPageRequest(3, 5000, nil)
	if p.PageSize() != MaxPageSize || p.Offset() != 2*MaxPageSize {
		t.Fatalf("capped: size=%d offset=%d", p.PageSize(), p.Offset())
	}
	if !p.Filter().IsEmpty() {
		t.Fatalf("nil filter should be empty")
	}
}

func TestPaginationTotals(t *testing.T) {
	a, b := 1, 2
	p := NewPagination(NewPageRequest(2, 2, nil), 5, []*int{&a, &b})
	if p.TotalPages != 3 || p.Page != 2 || len(p.Items) != 2 {
		t.Fatalf("pagination = %+v", p)
	}
	m := MapPagination(p, func(v *int) *string { s := string(rune('a' + *v)); return &s })
	if m.Total != 5 || *m.Items[0] != "b" {
		t.Fatalf("mapped = %+v", m)
	}
	empty := NewPagination[int](NewPageRequest(1, 10, nil), 0, nil)
	if empty.Items == nil || empty.TotalPages != 0 {
		t.Fatalf("empty = %+v", empty)
	}
}
