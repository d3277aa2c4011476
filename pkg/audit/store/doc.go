// Package store provides audit storage backends.
//
// JSONLStorage is the canonical durable backend: an append-only log of one
// JSON record per line. MemoryStorage is an in-memory implementation for
// tests and embedding scenarios that do not need durability.
package store
