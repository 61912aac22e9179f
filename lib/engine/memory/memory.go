package memory

import (
	"runtime"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tomkarw/kiwi-store/lib/engine"
	"github.com/tomkarw/kiwi-store/lib/util"
)

// --------------------------------------------------------------------------
// Core engine structure
// --------------------------------------------------------------------------

// memoryEngine implements a volatile engine with sharded data
type memoryEngine struct {
	numShards int
	seed      uint64
	shards    []*xsync.MapOf[string, []byte]
}

// EngineOptions configures the memory engine during initialization
type EngineOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default memory engine options
func DefaultOptions() *EngineOptions {
	return &EngineOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMemoryEngine creates a new in-memory engine with the specified options
// (optional). The engine keeps all data in sharded concurrent maps; Flush is
// a no-op and nothing survives a restart.
//
// Thread-safety: this function is not thread-safe and should only be called
// once during initialization. The returned engine is safe for concurrent use.
func NewMemoryEngine(opts *EngineOptions) engine.KVEngine {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards < 1 {
		opts.NumShards = 1
	}

	shards := make([]*xsync.MapOf[string, []byte], opts.NumShards)
	for i := range shards {
		shards[i] = xsync.NewMapOf[string, []byte]()
	}

	return &memoryEngine{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
		shards:    shards,
	}
}

// shard returns the appropriate shard for a given key
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *memoryEngine) shard(key string) *xsync.MapOf[string, []byte] {
	// Shift right to use higher-quality bits for distribution
	h := util.HashString(key, m.seed) >> 7
	return m.shards[h%uint64(m.numShards)]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see engine/interface.go)
// --------------------------------------------------------------------------

func (m *memoryEngine) Get(key string) ([]byte, bool) {
	value, found := m.shard(key).Load(key)
	if !found {
		return nil, false
	}
	// Return a copy so callers cannot mutate stored state
	out := make([]byte, len(value))
	copy(out, value)
	return out, true
}

func (m *memoryEngine) Set(key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.shard(key).Store(key, stored)
	return nil
}

func (m *memoryEngine) Remove(key string) (bool, error) {
	_, found := m.shard(key).LoadAndDelete(key)
	return found, nil
}

func (m *memoryEngine) Flush() error {
	return nil
}

func (m *memoryEngine) Close() error {
	return nil
}
