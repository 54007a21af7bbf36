/*
Package cache is a small keyed cache abstraction with explicit eviction.

PURPOSE:
  Lookups that are expensive to repeat (the guides assigned to a
  reservation) go through Cache instead of an ad hoc global map. Every
  implementation bounds what it keeps:

  - Memory: in-process, LRU-bounded by MaxEntries, entries expire after TTL
  - Redis: shared, entries expire after TTL on the server

  A Janitor purges expired Memory entries in the background so idle keys do
  not sit in memory until the next read.

SEE ALSO:
  - booking/guides.go: the guide directory built on this
*/
package cache

import "context"

// Cache maps string keys to values of type V.
//
// Get reports a miss with ok == false and a nil error. Errors are reserved
// for backend failures; callers treat them like a miss.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (value V, ok bool, err error)
	Set(ctx context.Context, key string, value V) error
	Remove(ctx context.Context, key string) error
}

// Purger drops expired entries and reports how many went.
type Purger interface {
	Purge() int
}
