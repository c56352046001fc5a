// Package host defines the host runtime as seen by the delegate layer.
//
// The host owns the accessory registry, the persisted cache of accessories
// and the protocol bridge to client apps. Delegates only need a small part
// of it:
//
//	Bridge                           resolve-or-create accessories, register them
//	└── Accessory (Context)          persisted top-level context, identify requests
//	    └── Service                  type UUID + subtype
//	        └── Characteristic       cached value, get/set handlers
//
// Context is the JSON-like object the host persists across restarts. One
// Context tree is shared by an accessory and all its scopes; the tree is
// guarded by a single mutex so concurrent host requests can update values
// safely.
package host
