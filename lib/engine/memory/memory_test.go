package memory

import (
	"testing"

	"github.com/tomkarw/kiwi-store/lib/engine"
	"github.com/tomkarw/kiwi-store/lib/engine/enginetest"
)

func Test(t *testing.T) {
	enginetest.RunEngineTests(t, "MemoryEngine", func(t *testing.T) engine.KVEngine {
		return NewMemoryEngine(nil)
	})
}

func TestSingleShard(t *testing.T) {
	enginetest.RunEngineTests(t, "MemoryEngineSingleShard", func(t *testing.T) engine.KVEngine {
		return NewMemoryEngine(&EngineOptions{NumShards: 1})
	})
}
