// Package database manages the bun connection behind the service: driver and
// dialect selection, pooling, health checks and reconnects, versioned
// migrations, SQL seed scripts, query logging and driver error classification.
package database
