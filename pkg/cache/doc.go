// Package cache provides a generic, thread-safe LRU cache with O(1)
// operations and bounded memory.
//
// The billing reconciler uses it as a bounded processed-event-id set, so
// duplicate webhook deliveries are suppressed without an unbounded
// process-wide map.
package cache
