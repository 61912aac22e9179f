// Package bolt implements engine.KVEngine on top of bbolt, as a durable
// alternative to the native kiwi engine. One bucket, one key-value pair per
// entry, durability and file locking delegated entirely to bbolt.
package bolt
