// Package jobs owns the lifecycle of transcription runs: a registry of jobs,
// a single serialized execution slot, the speaker-naming suspension point,
// and the progress feed.
package jobs

import (
	"time"

	"github.com/dndscribe/scribe/internal/transcript"
)

// Stage is a step in a job's linear progression.
type Stage string

const (
	StageQueued           Stage = "queued"
	StageLoadingModel     Stage = "loading_model"
	StageLoadingAudio     Stage = "loading_audio"
	StageTranscribing     Stage = "transcribing"
	StageAligning         Stage = "aligning"
	StageDiarizing        Stage = "diarizing"
	StageAwaitingSpeakers Stage = "awaiting_speakers"
	StageSaving           Stage = "saving"
	StageGeneratingRecap  Stage = "generating_recap"
	StagePushingToWiki    Stage = "pushing_to_wiki"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Fixed percent schedule. Each stage owns a sub-range of 0-100; percent
// never regresses within one run.
const (
	percentQueued           = 0
	percentLoadingModel     = 2
	percentLoadingAudio     = 5
	percentTranscribing     = 10
	percentAligning         = 72
	percentDiarizing        = 82
	percentAwaitingSpeakers = 95
	percentSaving           = 96
	percentGeneratingRecap  = 97
	percentPushingToWiki    = 99
	percentCompleted        = 100
)

// speakerInput is the payload that resumes a suspended job.
type speakerInput struct {
	names     transcript.SpeakerMap
	skipRecap bool
}

// Job is one processing run. Jobs are ephemeral: only the session they
// produce is persisted.
type Job struct {
	ID          string
	SessionID   string
	SessionName string
	AudioPath   string
	SkipRecap   bool
	SkipNaming  bool
	Stage       Stage
	Percent     int
	Message     string
	Err         string
	CreatedAt   time.Time

	// samples is populated when the job suspends for speaker naming.
	samples []transcript.SpeakerSummary
	// resume delivers the single accepted speaker submission.
	resume chan speakerInput
	// resumed guards the suspension point: exactly one submission is
	// accepted per job.
	resumed bool
}

// View is a read-only snapshot of a job, safe to hand to the web layer.
type View struct {
	ID          string                      `json:"id"`
	SessionID   string                      `json:"session_id"`
	SessionName string                      `json:"session_name"`
	Stage       Stage                       `json:"status"`
	Percent     int                         `json:"percent"`
	Message     string                      `json:"message"`
	Error       string                      `json:"error,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	Samples     []transcript.SpeakerSummary `json:"speaker_samples,omitempty"`
}

func (j *Job) view() View {
	v := View{
		ID:          j.ID,
		SessionID:   j.SessionID,
		SessionName: j.SessionName,
		Stage:       j.Stage,
		Percent:     j.Percent,
		Message:     j.Message,
		Error:       j.Err,
		CreatedAt:   j.CreatedAt,
	}
	if j.Stage == StageAwaitingSpeakers {
		v.Samples = j.samples
	}
	return v
}
