// Package delegate wraps the host's accessory, service and characteristic
// objects with delegates that own persistence, logging and synchronization.
//
// A Platform owns one AccessoryDelegate per device. Each accessory delegate
// owns ServiceDelegates, which own CharacteristicDelegates, and
// PropertyDelegates for values that have no host characteristic. Values are
// persisted in the host accessory's context and restored on restart; after
// all delegates are constructed, Platform.Initialise removes whatever the
// restored accessory still carries without a delegate.
//
// Host reads and writes pass through the characteristic delegate's optional
// getter and setter under a timeout: on a read the host falls back to the
// last persisted value, on a write it gets a failure, and a late answer is
// never delivered to the host a second time.
package delegate
