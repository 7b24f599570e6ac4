// Package repository provides a generic unit of work over bun: reads through
// one dedicated connection, writes staged until SaveChanges commits them in a
// single transaction, plus a registry and factory that hand out a fresh
// repository per operation.
package repository
