// Package vocab manages the campaign vocabulary used to bias transcription
// toward character names, places, and table jargon.
package vocab

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
)

type fileFormat struct {
	Vocabulary []string `yaml:"vocabulary"`
}

// Store holds the vocabulary term list and persists changes to a YAML file.
// Reads and writes are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	path  string
	terms []string
}

// New creates a vocabulary store backed by the file at path. When the file
// exists its contents win; otherwise the store starts from seed and the file
// is created on the first Replace.
func New(path string, seed []string) (*Store, error) {
	s := &Store{path: path, terms: dedupe(seed)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vocabulary: read %s: %w", path, err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("vocabulary: parse %s: %w", path, err)
	}
	s.terms = dedupe(f.Vocabulary)
	return s, nil
}

// Terms returns a copy of the current term list.
func (s *Store) Terms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// Replace swaps the term list and persists it. Terms are trimmed and
// deduplicated; order of first appearance is kept.
func (s *Store) Replace(terms []string) error {
	cleaned := dedupe(terms)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(fileFormat{Vocabulary: cleaned})
	if err != nil {
		return fmt.Errorf("vocabulary: encode: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("vocabulary: write %s: %w", s.path, err)
	}
	s.terms = cleaned
	return nil
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, term)
	}
	return out
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".vocab-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
