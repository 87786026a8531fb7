// Package transcribe wraps the external transcription and diarization
// sidecars and adapts their raw output into the canonical transcript model.
package transcribe

import "context"

// TranscriptionRequest holds parameters for a transcription call.
type TranscriptionRequest struct {
	// AudioPath is the path to the audio file to transcribe.
	AudioPath string `json:"audio_path"`
	// Model is the transcription model to use, e.g. "large-v3".
	Model string `json:"model,omitempty"`
	// Language is the expected language of the audio (e.g. "en").
	Language string `json:"language,omitempty"`
	// Device selects the compute device ("auto", "cuda", "cpu").
	Device string `json:"device,omitempty"`
	// ComputeType is the compute precision ("float16", "int8").
	ComputeType string `json:"compute_type,omitempty"`
	// BatchSize is the inference batch size.
	BatchSize int `json:"batch_size,omitempty"`
	// InitialPrompt biases the model toward domain vocabulary.
	InitialPrompt string `json:"initial_prompt,omitempty"`
}

// TranscriptionResult holds the raw result of a transcription call.
type TranscriptionResult struct {
	// Segments contains time-aligned transcript segments.
	Segments []RawSegment `json:"segments"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	// Language is the detected or specified language.
	Language string `json:"language,omitempty"`
}

// RawSegment is a time-aligned portion of the sidecar output. Word-level
// timing and scores are carried here but never enter the canonical model.
type RawSegment struct {
	Start float64   `json:"start"`
	End   float64   `json:"end"`
	Text  string    `json:"text"`
	Words []RawWord `json:"words,omitempty"`
}

// RawWord is per-word timing from the alignment pass.
type RawWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score,omitempty"`
}

// Transcriber is the interface transcription backends implement.
type Transcriber interface {
	// Name returns the backend name.
	Name() string
	// IsAvailable checks if the backend is reachable.
	IsAvailable(ctx context.Context) bool
	// Transcribe sends audio for transcription and returns the raw result.
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResult, error)
}

// DiarizationRequest holds parameters for a diarization call.
type DiarizationRequest struct {
	// AudioPath is the path to the audio file to diarize.
	AudioPath string `json:"audio_path"`
	// MinSpeakers is the minimum expected number of speakers (0 = auto).
	MinSpeakers int `json:"min_speakers,omitempty"`
	// MaxSpeakers is the maximum expected number of speakers (0 = auto).
	MaxSpeakers int `json:"max_speakers,omitempty"`
}

// DiarizationResult holds the result of a diarization call.
type DiarizationResult struct {
	// Turns contains speaker-attributed time ranges.
	Turns []SpeakerTurn `json:"turns"`
	// NumSpeakers is the number of speakers detected.
	NumSpeakers int `json:"num_speakers"`
}

// SpeakerTurn is one speaker-attributed time range.
type SpeakerTurn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Diarizer is the interface diarization backends implement.
type Diarizer interface {
	// Name returns the backend name.
	Name() string
	// IsAvailable checks if the backend is reachable.
	IsAvailable(ctx context.Context) bool
	// Diarize sends audio for speaker diarization and returns the result.
	Diarize(ctx context.Context, req DiarizationRequest) (*DiarizationResult, error)
}
