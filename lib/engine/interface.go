package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplKiwi   Implementation = "kiwi"
	ImplBolt   Implementation = "bolt"
	ImplMemory Implementation = "memory"
)

// EngineFactory is a function type that creates a new engine.
// This is used to abstract the creation of the engine from its consumers.
type EngineFactory func() (KVEngine, error)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// KVEngine is the interface every storage engine must implement. It is the
// only contract the dispatch layer relies on.
//
// An engine must be safe for concurrent calls on distinct keys; it provides
// single-key atomicity and nothing more. Cross-call consistency (read your
// own writes, per-key ordering) is the responsibility of the dispatch layer
// above, never of the engine.
type KVEngine interface {
	// Get returns the value for a key. The boolean return value indicates
	// whether a value for the key was found. Absence is not an error.
	Get(key string) (value []byte, found bool)
	// Set inserts or updates a key-value pair. Overwrites are idempotent.
	Set(key string, value []byte) error
	// Remove deletes a key-value pair and reports whether the key existed
	// prior to removal.
	Remove(key string) (found bool, err error)
	// Flush forces durability of all prior writes. Called on graceful
	// shutdown; must be safe to call more than once.
	Flush() error
	// Close flushes and releases all resources held by the engine.
	Close() error
}

// --------------------------------------------------------------------------
// Data Directory Ownership
// --------------------------------------------------------------------------

const markerFile = "ENGINE"

// ClaimDir marks a data directory as owned by the given engine
// implementation, creating the directory if needed. Opening a directory
// that was previously claimed by a different implementation is an error:
// the on-disk formats are not interchangeable.
func ClaimDir(dir string, impl Implementation) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", dir, err)
	}

	marker := filepath.Join(dir, markerFile)
	data, err := os.ReadFile(marker)
	if err == nil {
		if existing := strings.TrimSpace(string(data)); existing != string(impl) {
			return fmt.Errorf("data dir %s already initialized by engine %q, refusing to open with %q", dir, existing, impl)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read engine marker in %s: %w", dir, err)
	}

	if err := os.WriteFile(marker, []byte(impl+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write engine marker in %s: %w", dir, err)
	}
	return nil
}
