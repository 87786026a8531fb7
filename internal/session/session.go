// Package session persists processed sessions on disk: one directory per
// session holding session.yaml metadata, rendered transcripts, and an
// optional recap.
package session

import (
	"time"

	"github.com/dndscribe/scribe/internal/transcript"
)

// Status is the lifecycle status of a persisted session.
type Status string

const (
	StatusProcessing       Status = "processing"
	StatusAwaitingSpeakers Status = "awaiting_speakers"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Meta is the session metadata persisted to session.yaml.
type Meta struct {
	Name      string                `yaml:"name" json:"name"`
	Date      string                `yaml:"date" json:"date"`
	AudioFile string                `yaml:"audio_file,omitempty" json:"audio_file,omitempty"`
	Speakers  transcript.SpeakerMap `yaml:"speakers" json:"speakers"`
	Status    Status                `yaml:"status" json:"status"`
	CreatedAt time.Time             `yaml:"created_at" json:"created_at"`
}

// Session is a persisted session as listed or loaded from the store.
type Session struct {
	// ID is the session directory name, e.g. "2026-02-14-curse-of-strahd".
	ID string `json:"id"`
	Meta
	HasTranscript bool `json:"has_transcript"`
	HasRecap      bool `json:"has_recap"`
}
