// Package cqrs routes typed commands and queries to the handler registered for
// their request type.
//
// Handlers are bound once at startup through a Registry. NewDispatcher takes a
// read-only snapshot of the bindings; Send, SendFor and Ask build a new handler
// for every request and run it on the caller's goroutine.
//
//	reg := cqrs.NewRegistry()
//	_ = cqrs.RegisterQuery(reg, func() cqrs.QueryHandler[ListQuery, []Item] { return &listHandler{} })
//	d := cqrs.NewDispatcher(reg)
//	items, err := cqrs.Ask[ListQuery, []Item](ctx, d, ListQuery{})
package cqrs
