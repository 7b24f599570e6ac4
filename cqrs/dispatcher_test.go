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
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/VictoriaMetrics/metrics"
)

type ping struct{ N int }

type rename struct{ Name string }

type lookup struct{ Key string }

type pingHandler struct{ seen *[]int }

func (h *pingHandler) Handle(_ context.Context, cmd ping) error {
	*h.seen = append(*h.seen, cmd.N)
	if cmd.N < 0 {
		return errors.New("negative")
	}
	return nil
}

type renameHandler struct{ prefix string }

func (h renameHandler) Handle(_ context.Context, cmd rename) (string, error) {
	return h.prefix + cmd.Name, nil
}

type lookupHandler struct{}

func (lookupHandler) Handle(_ context.Context, q lookup) (int, error) {
	return len(q.Key), nil
}

func TestSendRunsNewHandlerPerCall(t *testing.T) {
	var built atomic.Int32
	var seen []int
	reg := NewRegistry()
	err := RegisterCommand(reg, func() CommandHandler[ping] {
		built.Add(1)
		return &pingHandler{seen: &seen}
	})
	if err != nil {
		t.Fatalf("RegisterCommand: %v", err)
	}
	d := NewDispatcher(reg)
	before := built.Load()

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		if err := Send(ctx, d, ping{N: i}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if got := built.Load() - before; got != 3 {
		t.Fatalf("handlers built = %d, want 3", got)
	}
	if len(seen) != 3 || seen[2] != 3 {
		t.Fatalf("seen = %v", seen)
	}
	if err := Send(ctx, d, ping{N: -1}); err == nil || err.Error() != "negative" {
		t.Fatalf("handler error not returned: %v", err)
	}
}

func TestSendForAndAsk(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterCommandFor(reg, func() CommandResultHandler[rename, string] { return renameHandler{prefix: "new-"} }); err != nil {
		t.Fatal(err)
	}
	if err := RegisterQuery(reg, func() QueryHandler[lookup, int] { return lookupHandler{} }); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(reg)
	ctx := context.Background()

	name, err := SendFor[rename, string](ctx, d, rename{Name: "jane"})
	if err != nil || name != "new-jane" {
		t.Fatalf("SendFor = %q, %v", name, err)
	}
	n, err := Ask[lookup, int](ctx, d, lookup{Key: "abcd"})
	if err != nil || n != 4 {
		t.Fatalf("Ask = %d, %v", n, err)
	}
}

func TestMissingHandler(t *testing.T) {
	reg := NewRegistry()
	_ = RegisterQuery(reg, func() QueryHandler[lookup, int] { return lookupHandler{} })
	d := NewDispatcher(reg)
	ctx := context.Background()

	if err := Send(ctx, d, ping{}); !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("Send = %v", err)
	}
	// the result type is part of the binding
	if _, err := Ask[lookup, string](ctx, d, lookup{}); !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("Ask with other result type = %v", err)
	}
	// a query binding does not serve commands
	if _, err := SendFor[lookup, int](ctx, d, lookup{}); !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("SendFor on query binding = %v", err)
	}
}

func TestFirstRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	first := func() CommandResultHandler[rename, string] { return renameHandler{prefix: "first-"} }
	second := func() CommandResultHandler[rename, string] { return renameHandler{prefix: "second-"} }
	if err := RegisterCommandFor(reg, first); err != nil {
		t.Fatal(err)
	}
	if err := RegisterCommandFor(reg, second); err != nil {
		t.Fatalf("duplicate registration should be ignored, got %v", err)
	}
	got, err := SendFor[rename, string](context.Background(), NewDispatcher(reg), rename{Name: "x"})
	if err != nil || got != "first-x" {
		t.Fatalf("SendFor = %q, %v", got, err)
	}
}

func TestRegistryFrozenAfterDispatcher(t *testing.T) {
	reg := NewRegistry()
	NewDispatcher(reg)
	err := RegisterQuery(reg, func() QueryHandler[lookup, int] { return lookupHandler{} })
	if !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("err = %v, want ErrRegistryFrozen", err)
	}
}

func TestDispatchMetrics(t *testing.T) {
	var seen []int
	reg := NewRegistry()
	_ = RegisterCommand(reg, func() CommandHandler[ping] { return &pingHandler{seen: &seen} })
	set := metrics.NewSet()
	d := NewDispatcher(reg, WithMetrics(set))
	ctx := context.Background()

	_ = Send(ctx, d, ping{N: 1})
	_ = Send(ctx, d, ping{N: -1})

	var sb strings.Builder
	set.WritePrometheus(&sb)
	out := sb.String()
	for _, want := range []string{
		`cqrs_dispatch_total{kind="command",request="cqrs.ping"} 2`,
		`cqrs_dispatch_errors_total{kind="command",request="cqrs.ping"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestConcurrentAsk(t *testing.T) {
	reg := NewRegistry()
	_ = RegisterQuery(reg, func() QueryHandler[lookup, int] { return lookupHandler{} })
	d := NewDispatcher(reg)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Ask[lookup, int](context.Background(), d, lookup{Key: "k"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Ask: %v", err)
	}
}
