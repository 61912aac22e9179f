package kiwi

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomkarw/kiwi-store/lib/engine"
	"github.com/tomkarw/kiwi-store/lib/engine/enginetest"
)

func Test(t *testing.T) {
	enginetest.RunEngineTests(t, "KiwiEngine", func(t *testing.T) engine.KVEngine {
		eng, err := NewKiwiEngine(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("failed to open engine: %v", err)
		}
		return eng
	})
}

func TestSyncWrites(t *testing.T) {
	enginetest.RunEngineTests(t, "KiwiEngineSync", func(t *testing.T) engine.KVEngine {
		eng, err := NewKiwiEngine(t.TempDir(), &EngineOptions{SyncWrites: true})
		if err != nil {
			t.Fatalf("failed to open engine: %v", err)
		}
		return eng
	})
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()

	eng, err := NewKiwiEngine(dir, nil)
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	if err := eng.Set("persistent", []byte("survives")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Set("removed", []byte("gone")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := eng.Remove("removed"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	eng, err = NewKiwiEngine(dir, nil)
	if err != nil {
		t.Fatalf("failed to reopen engine: %v", err)
	}
	defer eng.Close()

	value, found := eng.Get("persistent")
	if !found || !bytes.Equal(value, []byte("survives")) {
		t.Errorf("expected persisted value after reopen, got found=%v value=%q", found, value)
	}
	if _, found := eng.Get("removed"); found {
		t.Errorf("expected removed key to stay removed after reopen")
	}
}

func TestCompaction(t *testing.T) {
	dir := t.TempDir()

	// Tiny thresholds so a few overwrites trigger compaction
	eng, err := NewKiwiEngine(dir, &EngineOptions{
		CompactMinBytes:     256,
		CompactGarbageRatio: 0.3,
	})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}

	value := bytes.Repeat([]byte("x"), 64)
	for i := 0; i < 100; i++ {
		if err := eng.Set("churn", value); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		if err := eng.Set(fmt.Sprintf("keep-%d", i), []byte(fmt.Sprintf("value-%d", i))); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	impl := eng.(*kiwiEngine)
	impl.mu.RLock()
	size := impl.offset
	impl.mu.RUnlock()

	// 100 overwrites of a 64-byte value dwarf the 11 live records; the log
	// must have been rewritten well below the raw append volume.
	if size > 4096 {
		t.Errorf("expected compaction to shrink the log, size=%d", size)
	}

	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Live data must survive the rewrite and a reopen
	eng, err = NewKiwiEngine(dir, nil)
	if err != nil {
		t.Fatalf("failed to reopen after compaction: %v", err)
	}
	defer eng.Close()

	got, found := eng.Get("churn")
	if !found || !bytes.Equal(got, value) {
		t.Errorf("expected churn key to survive compaction")
	}
	for i := 0; i < 10; i++ {
		got, found := eng.Get(fmt.Sprintf("keep-%d", i))
		if !found || !bytes.Equal(got, []byte(fmt.Sprintf("value-%d", i))) {
			t.Errorf("expected keep-%d to survive compaction, got found=%v value=%q", i, found, got)
		}
	}
}

func TestCorruptTailTruncated(t *testing.T) {
	dir := t.TempDir()

	eng, err := NewKiwiEngine(dir, nil)
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	if err := eng.Set("good", []byte("record")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Simulate a torn write: append half a record
	logPath := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("failed to open log for corruption: %v", err)
	}
	if _, err := f.Write([]byte{recSet, 0, 0, 0, 5}); err != nil {
		t.Fatalf("failed to write torn record: %v", err)
	}
	f.Close()

	eng, err = NewKiwiEngine(dir, nil)
	if err != nil {
		t.Fatalf("expected torn tail to be tolerated, got: %v", err)
	}
	defer eng.Close()

	value, found := eng.Get("good")
	if !found || !bytes.Equal(value, []byte("record")) {
		t.Errorf("expected record before torn tail to survive, got found=%v value=%q", found, value)
	}
}

func TestDirClaimedByOtherEngine(t *testing.T) {
	dir := t.TempDir()
	if err := engine.ClaimDir(dir, engine.ImplBolt); err != nil {
		t.Fatalf("ClaimDir failed: %v", err)
	}

	if _, err := NewKiwiEngine(dir, nil); err == nil {
		t.Error("expected open to fail on a dir claimed by another engine")
	}
}
