// Package contact holds the Contact entity and the use cases built on it:
// save, delete and list, exposed as commands and queries on a cqrs.Dispatcher.
//
// Each use case takes its own unit of work from a repository.Factory and
// closes it before returning. Bootstrap code calls RegisterModels,
// RegisterRepositories and RegisterHandlers once at startup.
package contact
