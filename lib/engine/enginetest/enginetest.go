package enginetest

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/tomkarw/kiwi-store/lib/engine"
)

// EngineFactory is a function that creates a fresh instance of a KVEngine
// implementation for a single test.
type EngineFactory func(t *testing.T) engine.KVEngine

// RunEngineTests runs the shared conformance test suite for a KVEngine
// implementation.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory(t))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory(t))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(t))
		})

		t.Run("ValueIsolation", func(t *testing.T) {
			testValueIsolation(t, factory(t))
		})

		t.Run("FlushIdempotent", func(t *testing.T) {
			testFlushIdempotent(t, factory(t))
		})

		t.Run("ConcurrentDistinctKeys", func(t *testing.T) {
			testConcurrentDistinctKeys(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, eng engine.KVEngine) {
	defer eng.Close()

	testKey := "test-key"
	testValue := []byte("test-value")

	if err := eng.Set(testKey, testValue); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, found := eng.Get(testKey)
	if !found {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue) {
		t.Errorf("Expected value %s, got %s", testValue, result)
	}

	if _, found := eng.Get("nonexistent-key"); found {
		t.Errorf("Expected nonexistent key to return found=false")
	}
}

func testOverwrite(t *testing.T, eng engine.KVEngine) {
	defer eng.Close()

	testKey := "test-key"

	if err := eng.Set(testKey, []byte("first")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Set(testKey, []byte("second")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// Idempotent overwrite: repeating the same Set changes nothing
	if err := eng.Set(testKey, []byte("second")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, found := eng.Get(testKey)
	if !found {
		t.Fatalf("Expected key %s to exist after overwrite", testKey)
	}
	if !bytes.Equal(result, []byte("second")) {
		t.Errorf("Expected value %q, got %q", "second", result)
	}
}

func testRemove(t *testing.T, eng engine.KVEngine) {
	defer eng.Close()

	testKey := "test-key"

	if err := eng.Set(testKey, []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	found, err := eng.Remove(testKey)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !found {
		t.Errorf("Expected Remove of existing key to report found=true")
	}

	if _, found := eng.Get(testKey); found {
		t.Errorf("Expected key %s to be gone after Remove", testKey)
	}

	// Removing again must report found=false, not an error
	found, err = eng.Remove(testKey)
	if err != nil {
		t.Fatalf("Second Remove failed: %v", err)
	}
	if found {
		t.Errorf("Expected second Remove to report found=false")
	}
}

func testEdgeCases(t *testing.T, eng engine.KVEngine) {
	defer eng.Close()

	// Empty value is a legal value, distinct from absence
	if err := eng.Set("empty-value", []byte{}); err != nil {
		t.Fatalf("Set with empty value failed: %v", err)
	}
	value, found := eng.Get("empty-value")
	if !found {
		t.Errorf("Expected key with empty value to be found")
	}
	if len(value) != 0 {
		t.Errorf("Expected empty value, got %q", value)
	}

	// Empty key: equality is exact-byte, no normalization
	if err := eng.Set("", []byte("empty-key-value")); err != nil {
		t.Fatalf("Set with empty key failed: %v", err)
	}
	value, found = eng.Get("")
	if !found || !bytes.Equal(value, []byte("empty-key-value")) {
		t.Errorf("Expected empty key roundtrip, got found=%v value=%q", found, value)
	}

	// Binary keys and values
	binKey := string([]byte{0, 1, 2, 255})
	binValue := []byte{255, 0, 128, 7}
	if err := eng.Set(binKey, binValue); err != nil {
		t.Fatalf("Set with binary key failed: %v", err)
	}
	value, found = eng.Get(binKey)
	if !found || !bytes.Equal(value, binValue) {
		t.Errorf("Expected binary roundtrip, got found=%v value=%v", found, value)
	}
}

func testValueIsolation(t *testing.T, eng engine.KVEngine) {
	defer eng.Close()

	original := []byte("immutable")
	if err := eng.Set("key", original); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Mutating the slice passed to Set must not affect stored state
	original[0] = 'X'

	value, _ := eng.Get("key")
	if !bytes.Equal(value, []byte("immutable")) {
		t.Errorf("Stored value was mutated through the caller's slice: %q", value)
	}

	// Mutating the slice returned by Get must not affect stored state
	if len(value) > 0 {
		value[0] = 'Y'
	}
	again, _ := eng.Get("key")
	if !bytes.Equal(again, []byte("immutable")) {
		t.Errorf("Stored value was mutated through a returned slice: %q", again)
	}
}

func testFlushIdempotent(t *testing.T, eng engine.KVEngine) {
	defer eng.Close()

	if err := eng.Set("key", []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := eng.Flush(); err != nil {
			t.Fatalf("Flush %d failed: %v", i, err)
		}
	}

	if _, found := eng.Get("key"); !found {
		t.Errorf("Expected key to survive Flush")
	}
}

func testConcurrentDistinctKeys(t *testing.T, eng engine.KVEngine) {
	defer eng.Close()

	const (
		goroutines = 8
		perWorker  = 200
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", g, i)
				value := []byte(fmt.Sprintf("value-%d-%d", g, i))
				if err := eng.Set(key, value); err != nil {
					t.Errorf("concurrent Set failed: %v", err)
					return
				}
				got, found := eng.Get(key)
				if !found || !bytes.Equal(got, value) {
					t.Errorf("concurrent Get mismatch for %s: found=%v value=%q", key, found, got)
					return
				}
				if i%3 == 0 {
					if _, err := eng.Remove(key); err != nil {
						t.Errorf("concurrent Remove failed: %v", err)
						return
					}
				}
			}
		}(g)
	}
	wg.Wait()

	// Spot-check surviving keys
	for g := 0; g < goroutines; g++ {
		key := fmt.Sprintf("worker-%d-key-%d", g, 1)
		value, found := eng.Get(key)
		if !found || !bytes.Equal(value, []byte(fmt.Sprintf("value-%d-1", g))) {
			t.Errorf("Expected %s to survive, got found=%v value=%q", key, found, value)
		}
	}
}
