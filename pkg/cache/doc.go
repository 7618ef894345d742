// Package cache defines the answer cache used by the assistant: a durable
// exact-match mapping from a normalized question to the answer obtained for
// it. Implementations live in subpackages (sqlite, postgres); Memory is an
// in-process implementation used by tests and by the memory backend.
package cache
