package bolt

import (
	"bytes"
	"testing"

	"github.com/tomkarw/kiwi-store/lib/engine"
	"github.com/tomkarw/kiwi-store/lib/engine/enginetest"
)

func Test(t *testing.T) {
	enginetest.RunEngineTests(t, "BoltEngine", func(t *testing.T) engine.KVEngine {
		eng, err := NewBoltEngine(t.TempDir())
		if err != nil {
			t.Fatalf("failed to open engine: %v", err)
		}
		return eng
	})
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()

	eng, err := NewBoltEngine(dir)
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	if err := eng.Set("persistent", []byte("survives")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	eng, err = NewBoltEngine(dir)
	if err != nil {
		t.Fatalf("failed to reopen engine: %v", err)
	}
	defer eng.Close()

	value, found := eng.Get("persistent")
	if !found || !bytes.Equal(value, []byte("survives")) {
		t.Errorf("expected persisted value after reopen, got found=%v value=%q", found, value)
	}
}

func TestDirClaimedByOtherEngine(t *testing.T) {
	dir := t.TempDir()
	if err := engine.ClaimDir(dir, engine.ImplKiwi); err != nil {
		t.Fatalf("ClaimDir failed: %v", err)
	}

	if _, err := NewBoltEngine(dir); err == nil {
		t.Error("expected open to fail on a dir claimed by another engine")
	}
}
