// Package cache provides the process wide query cache shared by query
// observers, mutations and list views.
//
// # Overview
//
// Results are stored under a Key made of a resource name and a digest of the
// request parameters:
//
//	key := client.Key("getCategoryList", cache.Params{"page": 1, "search": "res"})
//	key.String() // getCategoryList::page=1&search=res
//
// Parameter order never matters and nil values are dropped, so logically
// equal requests share one entry.
//
// # Fetching
//
// Fetch runs the supplied FetchFn, or joins the request already in flight for
// the same key. Every key carries a generation that is bumped by Set,
// Invalidate and Remove; a response whose generation is outdated when it
// arrives is discarded instead of overwriting newer data.
//
//	categories, err := cache.GetOrFetch(ctx, client, key, func(ctx context.Context) ([]Category, error) {
//		return api.ListCategories(ctx, page)
//	}, cache.DefaultFetchOptions())
//
// Retries run inside the single request with exponential backoff, so
// concurrent callers share the retries as well.
//
// # Invalidation
//
// Invalidate marks matching entries stale and tells subscribed observers,
// which refetch. Matchers select exact keys, resource prefixes or parameter
// subsets:
//
//	client.Invalidate(cache.MatchPrefix("getCategoryList"))
//	client.Invalidate(cache.MatchResource("getIdeaList", cache.Params{"category_id": 3}))
//
// # Lifetime
//
// Subscribe keeps an entry alive. Once the last subscriber leaves, the entry
// is collected after Config.GCGracePeriod unless a request is still running.
// The backing store may also evict entries under capacity pressure; an
// evicted entry simply reads as missing.
//
// # Key Serialization Strategy
//
// The default key serializer uses reflection to handle parameter values:
//
//   - Strings, numbers and booleans: direct string representation
//   - time.Time and other TextMarshalers: their text form
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs for deterministic output
//   - Structs: exported fields with name:value pairs
//   - Functions and channels: type name only
package cache
