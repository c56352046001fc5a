// Package memhost is an in-memory host for delegates.
//
// It keeps the accessory registry, allocates instance ids, caches values and
// persists everything through a persistence.Store. The client side of the
// host is simulated with Get, Set and Identify, which drive the handlers the
// delegates attach, and Subscribe, which receives pushed value updates.
package memhost
