package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.txt")
	m := NewManifest(path)

	names, err := m.Entries()
	if err != nil || len(names) != 0 {
		t.Fatalf("expected empty manifest, got %v, %v", names, err)
	}

	for _, n := range []string{"a.pdf", "b.pdf", "a.pdf"} {
		if _, err := m.Add(n); err != nil {
			t.Fatalf("Add(%s): %v", n, err)
		}
	}

	names, err = m.Entries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a.pdf", "b.pdf"}) {
		t.Errorf("unexpected entries %v", names)
	}

	added, _ := m.Add("b.pdf")
	if added {
		t.Error("expected duplicate add to report no change")
	}
	ok, _ := m.Contains("a.pdf")
	if !ok {
		t.Error("expected a.pdf to be listed")
	}
}

func TestManifest_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.txt")
	os.WriteFile(path, []byte("uno.pdf\n\n  dos.pdf  \n"), 0o644)

	names, err := NewManifest(path).Entries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"uno.pdf", "dos.pdf"}) {
		t.Errorf("unexpected entries %v", names)
	}
}
