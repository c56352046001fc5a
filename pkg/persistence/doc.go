// Package persistence stores the host's cache of accessories.
//
// The cache holds everything that must survive a restart: the accessories
// the host has registered, their services and characteristics (with the
// last value and instance id), and the top-level persisted context of each
// accessory. Two stores are provided:
//
//   - FileStore writes the cache as a single JSON file.
//   - SQLiteStore keeps one row per accessory in an SQLite database.
//
// Both return nil, nil from Load when nothing has been stored yet.
package persistence
