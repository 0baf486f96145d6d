// Package client bootstraps the client-side infrastructure: the persistent
// session repository (SQLite with embedded goose migrations, Redis or memory,
// optionally encrypted at rest) and gRPC connections.
//
// # Error Handling
//
// ErrUnknownBackend is returned for an unsupported store backend name;
// everything else is wrapped with %w and can be matched with errors.Is.
package client
