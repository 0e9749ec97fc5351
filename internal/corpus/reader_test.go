package corpus

import (
	"testing"
)

func TestDirectoryName(t *testing.T) {
	dir := NewDirectory(map[string]string{
		"cat-1": "Finance",
		"cat-2": "Legal",
	})

	if name, ok := dir.Name("cat-1"); !ok || name != "Finance" {
		t.Errorf("Name(cat-1) = (%q, %v), want (Finance, true)", name, ok)
	}
	if _, ok := dir.Name("cat-missing"); ok {
		t.Error("Expected miss for unknown category ID")
	}
	if dir.Len() != 2 {
		t.Errorf("Len = %d, want 2", dir.Len())
	}
}

func TestDirectorySnapshotIsolation(t *testing.T) {
	source := map[string]string{"cat-1": "Finance"}
	dir := NewDirectory(source)

	// Mutating the source map after construction must not leak into the
	// snapshot; directories are request-scoped and immutable.
	source["cat-1"] = "Renamed"
	source["cat-2"] = "Added"

	if name, _ := dir.Name("cat-1"); name != "Finance" {
		t.Errorf("Name(cat-1) = %q, want the snapshot value Finance", name)
	}
	if _, ok := dir.Name("cat-2"); ok {
		t.Error("Snapshot should not see entries added after construction")
	}
}
