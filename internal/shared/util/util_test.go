package util

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSortedStringKeys(t *testing.T) {
	got := SortedStringKeys(map[string]int{"sale": 1, "base": 2, "crm": 3})
	want := []string{"base", "crm", "sale"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestUniqueStrings(t *testing.T) {
	got := UniqueStrings([]string{" crm", "sale", "", "crm", "  ", "base"})
	want := []string{"crm", "sale", "base"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestWriteFileWithDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "plan.json")
	if err := WriteFileWithDirs(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "{}" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}
}
