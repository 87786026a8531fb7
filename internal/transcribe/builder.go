package transcribe

import (
	"context"
	"fmt"
	"strings"

	apperr "github.com/dndscribe/scribe/internal/errors"
	"github.com/dndscribe/scribe/internal/transcript"
)

// Stage names reported through the progress callback, in pipeline order.
const (
	StageLoadingModel = "loading_model"
	StageLoadingAudio = "loading_audio"
	StageTranscribing = "transcribing"
	StageAligning     = "aligning"
	StageDiarizing    = "diarizing"
)

// ProgressFunc receives stage transitions while a build is running. Percent
// values follow a fixed increasing schedule.
type ProgressFunc func(stage, message string, percent int)

// Options configures one build.
type Options struct {
	Model       string
	Language    string
	Device      string
	ComputeType string
	BatchSize   int
	// Vocabulary biases the model toward campaign names and jargon.
	Vocabulary  []string
	MinSpeakers int
	MaxSpeakers int
}

// Builder turns an audio file into a canonical Transcript by driving the
// transcription and diarization backends and adapting their raw output.
// Failures are surfaced as a single TranscriptionFailed error; the builder
// never retries.
type Builder struct {
	transcriber Transcriber
	diarizer    Diarizer
}

// NewBuilder creates a Builder. The diarizer may be nil, in which case all
// segments carry the UNKNOWN speaker label.
func NewBuilder(t Transcriber, d Diarizer) *Builder {
	return &Builder{transcriber: t, diarizer: d}
}

// Build transcribes and diarizes the audio at audioPath. The progress
// callback, if non-nil, observes each stage exactly once.
func (b *Builder) Build(ctx context.Context, audioPath string, opts Options, progress ProgressFunc) (*transcript.Transcript, error) {
	report := func(stage, message string, percent int) {
		if progress != nil {
			progress(stage, message, percent)
		}
	}

	report(StageLoadingModel, fmt.Sprintf("Loading Whisper model: %s (%s, %s)",
		opts.Model, opts.Device, opts.ComputeType), 2)
	if !b.transcriber.IsAvailable(ctx) {
		return nil, apperr.TranscriptionFailed(
			"transcription engine is not reachable", nil)
	}

	report(StageLoadingAudio, fmt.Sprintf("Loading audio: %s", audioPath), 5)

	vocabNote := ""
	if len(opts.Vocabulary) > 0 {
		vocabNote = fmt.Sprintf(" (vocabulary: %d terms)", len(opts.Vocabulary))
	}
	report(StageTranscribing, "Transcribing audio..."+vocabNote+" (this may take a while)", 10)

	raw, err := b.transcriber.Transcribe(ctx, TranscriptionRequest{
		AudioPath:     audioPath,
		Model:         opts.Model,
		Language:      opts.Language,
		Device:        opts.Device,
		ComputeType:   opts.ComputeType,
		BatchSize:     opts.BatchSize,
		InitialPrompt: strings.Join(opts.Vocabulary, ", "),
	})
	if err != nil {
		return nil, apperr.TranscriptionFailed(describeEngineError(err), err)
	}

	report(StageAligning, "Aligning transcript...", 72)
	segments := adaptSegments(raw.Segments)

	if b.diarizer != nil {
		report(StageDiarizing, "Running speaker diarization...", 82)
		diar, err := b.diarizer.Diarize(ctx, DiarizationRequest{
			AudioPath:   audioPath,
			MinSpeakers: opts.MinSpeakers,
			MaxSpeakers: opts.MaxSpeakers,
		})
		if err != nil {
			return nil, apperr.TranscriptionFailed(describeEngineError(err), err)
		}
		assignSpeakers(segments, diar.Turns)
	} else {
		report(StageDiarizing, "No diarization backend configured - skipping speaker identification", 95)
	}

	return transcript.New(segments, raw.Duration), nil
}

// adaptSegments maps raw sidecar segments to the canonical model, dropping
// word-level timing and scores.
func adaptSegments(raw []RawSegment) []transcript.Segment {
	segments := make([]transcript.Segment, 0, len(raw))
	for _, seg := range raw {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    text,
			Speaker: transcript.UnknownSpeaker,
		})
	}
	return segments
}

// assignSpeakers labels each segment with the speaker whose turns overlap it
// the most, the same attribution rule whisperX applies to words.
func assignSpeakers(segments []transcript.Segment, turns []SpeakerTurn) {
	for i := range segments {
		overlaps := make(map[string]float64)
		for _, turn := range turns {
			o := overlap(segments[i].Start, segments[i].End, turn.Start, turn.End)
			if o > 0 {
				overlaps[turn.Speaker] += o
			}
		}
		best := ""
		var bestOverlap float64
		for speaker, o := range overlaps {
			if o > bestOverlap || (o == bestOverlap && (best == "" || speaker < best)) {
				best = speaker
				bestOverlap = o
			}
		}
		if best != "" {
			segments[i].Speaker = best
		}
	}
}

func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end <= start {
		return 0
	}
	return end - start
}

// describeEngineError turns a sidecar error into a message a DM can act on.
func describeEngineError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unsupported") || strings.Contains(msg, "decode audio") ||
		strings.Contains(msg, "corrupt"):
		return "unsupported audio format"
	case strings.Contains(msg, "out of memory") || strings.Contains(msg, "OOM"):
		return "the transcription engine ran out of memory"
	case strings.Contains(msg, "model"):
		return "the transcription model could not be loaded"
	default:
		return msg
	}
}
