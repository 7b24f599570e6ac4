// Package api serves the contact endpoints over HTTP with huma.
//
// New builds the http.Handler: /liveness, /readiness and /metrics on a plain
// mux, and the huma operations under /api behind the logging, metrics and
// recover middleware. Handlers only translate between HTTP and the commands
// and queries of a cqrs.Dispatcher.
package api
