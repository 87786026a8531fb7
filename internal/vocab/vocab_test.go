package vocab

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNewSeedsWhenFileAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	s, err := New(path, []string{"Thistle", " Barovia ", "thistle", ""})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := s.Terms()
	want := []string{"Thistle", "Barovia"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
	// Seeding alone does not create the file.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file created before first Replace")
	}
}

func TestReplacePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	s, err := New(path, []string{"Old"})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Replace([]string{"Strahd", "Ireena", "Vallaki"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	// A fresh store reads the file, not the seed.
	reloaded, err := New(path, []string{"Old"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Strahd", "Ireena", "Vallaki"}
	if got := reloaded.Terms(); !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded terms = %v, want %v", got, want)
	}
}

func TestTermsReturnsCopy(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "v.yaml"), []string{"Strahd"})
	if err != nil {
		t.Fatal(err)
	}

	terms := s.Terms()
	terms[0] = "mutated"
	if s.Terms()[0] != "Strahd" {
		t.Error("Terms exposes internal slice")
	}
}

func TestNewRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	if err := os.WriteFile(path, []byte("vocabulary: {not a list"), 0o640); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path, nil); err == nil {
		t.Error("malformed file accepted")
	}
}
