// Package util provides small shared helpers for the kiwi-store library:
// seed generation and seeded string hashing. The hash is used both for
// routing keys to dispatcher lanes and for distributing keys across the
// shards of the in-memory engine.
package util
