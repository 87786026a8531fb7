package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	apperr "github.com/dndscribe/scribe/internal/errors"
	"github.com/dndscribe/scribe/internal/transcript"
)

const (
	metaFile       = "session.yaml"
	transcriptJSON = "transcript.json"
	transcriptTXT  = "transcript.txt"
	transcriptSRT  = "transcript.srt"
	recapFile      = "recap.md"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9-]`)

// Store reads and writes sessions under a base directory. All writes go
// through a temp file and rename so concurrent readers never observe a
// half-written file.
type Store struct {
	baseDir string
}

// NewStore creates a session store rooted at baseDir, creating it if needed.
func NewStore(baseDir string) (*Store, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("session store: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("session store: create base directory: %w", err)
	}
	return &Store{baseDir: abs}, nil
}

// BaseDir returns the absolute base directory of the store.
func (s *Store) BaseDir() string { return s.baseDir }

// Dir returns the absolute directory for a session id.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.baseDir, filepath.Base(id))
}

// NewSessionID derives a unique date-slug directory name from a session name.
// The directory is not created; SaveMeta creates it on first write.
func (s *Store) NewSessionID(name string, now time.Time) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugPattern.ReplaceAllString(slug, "")
	base := fmt.Sprintf("%s-%s", now.Format("2006-01-02"), slug)

	id := base
	for counter := 2; ; counter++ {
		if _, err := os.Stat(filepath.Join(s.baseDir, id)); os.IsNotExist(err) {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, counter)
	}
}

// Exists reports whether a session directory exists.
func (s *Store) Exists(id string) bool {
	info, err := os.Stat(s.Dir(id))
	return err == nil && info.IsDir()
}

// SaveMeta persists session metadata, creating the session directory if
// needed.
func (s *Store) SaveMeta(id string, meta Meta) error {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return apperr.PersistenceFailed("create session directory", err)
	}
	if meta.Speakers == nil {
		meta.Speakers = transcript.SpeakerMap{}
	}
	data, err := yaml.Marshal(meta)
	if err != nil {
		return apperr.PersistenceFailed("encode metadata", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, metaFile), data); err != nil {
		return apperr.PersistenceFailed("write metadata", err)
	}
	return nil
}

// LoadMeta reads session metadata; legacy directories without session.yaml
// get inferred metadata from the directory name.
func (s *Store) LoadMeta(id string) (Meta, error) {
	dir := s.Dir(id)
	if !s.Exists(id) {
		return Meta{}, apperr.NotFound("session", id)
	}

	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return s.inferMeta(id), nil
		}
		return Meta{}, apperr.PersistenceFailed("read metadata", err)
	}

	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return Meta{}, apperr.PersistenceFailed("decode metadata", err)
	}
	if meta.Speakers == nil {
		meta.Speakers = transcript.SpeakerMap{}
	}
	return meta, nil
}

func (s *Store) inferMeta(id string) Meta {
	meta := Meta{
		Name:     id,
		Speakers: transcript.SpeakerMap{},
		Status:   StatusCompleted,
	}
	if len(id) >= 10 {
		if _, err := time.Parse("2006-01-02", id[:10]); err == nil {
			meta.Date = id[:10]
		}
	}
	if _, err := os.Stat(filepath.Join(s.Dir(id), transcriptJSON)); err != nil {
		meta.Status = StatusFailed
	}
	return meta
}

// SaveTranscript persists the canonical transcript JSON plus the requested
// rendered formats ("txt", "srt"). JSON is always written.
func (s *Store) SaveTranscript(id string, t *transcript.Transcript, formats []string, timestamps bool) error {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return apperr.PersistenceFailed("create session directory", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return apperr.PersistenceFailed("encode transcript", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, transcriptJSON), data); err != nil {
		return apperr.PersistenceFailed("write transcript", err)
	}

	for _, format := range formats {
		switch format {
		case "txt":
			if err := writeFileAtomic(filepath.Join(dir, transcriptTXT), []byte(t.RenderText(timestamps))); err != nil {
				return apperr.PersistenceFailed("write transcript.txt", err)
			}
		case "srt":
			if err := writeFileAtomic(filepath.Join(dir, transcriptSRT), []byte(t.RenderSRT())); err != nil {
				return apperr.PersistenceFailed("write transcript.srt", err)
			}
		}
	}
	return nil
}

// LoadTranscript reads the canonical transcript for a session.
func (s *Store) LoadTranscript(id string) (*transcript.Transcript, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(id), transcriptJSON))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("transcript", id)
		}
		return nil, apperr.PersistenceFailed("read transcript", err)
	}
	var t transcript.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, apperr.PersistenceFailed("decode transcript", err)
	}
	t.Normalize()
	return &t, nil
}

// TranscriptLines returns the rendered text transcript split into lines, or
// nil when no text rendering exists.
func (s *Store) TranscriptLines(id string) []string {
	data, err := os.ReadFile(filepath.Join(s.Dir(id), transcriptTXT))
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// SaveRecap persists the recap markdown with a generated-at header.
func (s *Store) SaveRecap(id, recapText string, now time.Time) error {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return apperr.PersistenceFailed("create session directory", err)
	}
	content := fmt.Sprintf("# Session Recap\n\n*Generated: %s*\n\n%s",
		now.Format("2006-01-02 15:04"), recapText)
	if err := writeFileAtomic(filepath.Join(dir, recapFile), []byte(content)); err != nil {
		return apperr.PersistenceFailed("write recap", err)
	}
	return nil
}

// LoadRecap reads the recap markdown, or an empty string when none exists.
func (s *Store) LoadRecap(id string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(id), recapFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", apperr.PersistenceFailed("read recap", err)
	}
	return string(data), nil
}

// List returns all sessions, newest directory name first.
func (s *Store) List() ([]Session, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, apperr.PersistenceFailed("list sessions", err)
	}

	var sessions []Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		meta, err := s.LoadMeta(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, s.describe(id, meta))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

// Get returns one session by id.
func (s *Store) Get(id string) (Session, error) {
	meta, err := s.LoadMeta(id)
	if err != nil {
		return Session{}, err
	}
	return s.describe(id, meta), nil
}

// Files returns the session directory's file names, sorted.
func (s *Store) Files(id string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir(id))
	if err != nil {
		return nil, apperr.NotFound("session", id)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// FilePath resolves a file inside a session directory, rejecting traversal.
func (s *Store) FilePath(id, filename string) (string, error) {
	if strings.Contains(filename, "..") || strings.ContainsRune(filename, os.PathSeparator) {
		return "", apperr.InvalidInput("invalid filename")
	}
	path := filepath.Join(s.Dir(id), filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", apperr.NotFound("file", filename)
	}
	return path, nil
}

func (s *Store) describe(id string, meta Meta) Session {
	dir := s.Dir(id)
	_, terr := os.Stat(filepath.Join(dir, transcriptJSON))
	_, rerr := os.Stat(filepath.Join(dir, recapFile))
	return Session{
		ID:            id,
		Meta:          meta,
		HasTranscript: terr == nil,
		HasRecap:      rerr == nil,
	}
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
