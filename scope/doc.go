// Package scope provides structured concurrency for Go: a small algebra of
// scope-creating combinators (Sync, Race, Rush, Branch, Spawn, SpawnScope)
// that run asynchronous work concurrently with disciplined cancellation,
// guaranteed cleanup, and no leaked background goroutines.
//
// Every unit of work is a Task bound to a Scope. When a scope ends,
// normally, by failure, or by first result, every task still bound to it
// is cancelled before control returns to the caller.
package scope
