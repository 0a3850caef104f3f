// Package query is the collection cache that sits between list screens and
// the data service.
//
// Each collection is addressed by a Key. Query.Load returns the cached
// State, fetching first when the entry is absent or stale. Concurrent loads
// of one key share a single fetch. Invalidate is the only way to change the
// cache: it marks entries stale so the next Load refetches, and it never
// edits cached records. A failed refetch keeps the last good data and
// reports the error next to it.
//
// Fetches started with a Scope's context are cancelled when the scope is
// closed, which is how a screen abandons its reads on teardown.
package query
