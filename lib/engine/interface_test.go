package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClaimDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	// First claim creates the directory and the marker
	if err := ClaimDir(dir, ImplKiwi); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, markerFile)); err != nil {
		t.Fatalf("expected marker file: %v", err)
	}

	// Re-claiming with the same engine is fine
	if err := ClaimDir(dir, ImplKiwi); err != nil {
		t.Errorf("re-claim with same engine failed: %v", err)
	}

	// Claiming with a different engine must fail
	if err := ClaimDir(dir, ImplBolt); err == nil {
		t.Error("expected claim with different engine to fail")
	}
}
