// Package transcript holds the canonical speaker-attributed transcript model
// shared by the pipeline, the session store, and the wiki payload.
package transcript

import "sort"

// UnknownSpeaker is the label used when diarization produced no speaker.
const UnknownSpeaker = "UNKNOWN"

// Segment is one timed, attributed utterance.
type Segment struct {
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
	// Speaker is the raw diarization label, e.g. "SPEAKER_00".
	Speaker string `json:"speaker"`
	// SpeakerName is the human-assigned name, absent until assigned.
	SpeakerName string `json:"speaker_name,omitempty"`
}

// DisplayName returns the human name if assigned, else the raw label.
func (s Segment) DisplayName() string {
	if s.SpeakerName != "" {
		return s.SpeakerName
	}
	if s.Speaker != "" {
		return s.Speaker
	}
	return UnknownSpeaker
}

// SpeakerMap maps raw diarization labels to human-assigned names.
// The mapping may be partial; assigned names are authoritative.
type SpeakerMap map[string]string

// Transcript is an ordered sequence of segments plus derived aggregates.
type Transcript struct {
	Segments []Segment `json:"segments"`
	// Duration is the audio duration in seconds, at least the max segment end.
	Duration float64 `json:"duration"`
	// SegmentCount always equals len(Segments).
	SegmentCount int `json:"segment_count"`
}

// New builds a Transcript from segments, sorting by start time (stable, so
// overlapping simultaneous speech keeps its produced order) and deriving the
// aggregate fields. A duration shorter than the last segment end is raised
// to it.
func New(segments []Segment, duration float64) *Transcript {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
	for _, seg := range segments {
		if seg.End > duration {
			duration = seg.End
		}
	}
	return &Transcript{
		Segments:     segments,
		Duration:     duration,
		SegmentCount: len(segments),
	}
}

// Normalize re-derives SegmentCount and Duration after external mutation,
// e.g. a transcript loaded from disk.
func (t *Transcript) Normalize() {
	t.SegmentCount = len(t.Segments)
	for _, seg := range t.Segments {
		if seg.End > t.Duration {
			t.Duration = seg.End
		}
	}
}

// ApplySpeakerNames assigns human names to segments by raw label. Labels
// missing from the map fall back to the raw label itself, matching how the
// transcript renders unnamed speakers. Applying the same map twice is a
// no-op.
func (t *Transcript) ApplySpeakerNames(names SpeakerMap) {
	for i := range t.Segments {
		label := t.Segments[i].Speaker
		if label == "" {
			label = UnknownSpeaker
		}
		if name, ok := names[label]; ok && name != "" {
			t.Segments[i].SpeakerName = name
		} else {
			t.Segments[i].SpeakerName = label
		}
	}
}

// ClearSpeakerNames removes assigned names, used before re-applying a new map
// to an already-persisted transcript.
func (t *Transcript) ClearSpeakerNames() {
	for i := range t.Segments {
		t.Segments[i].SpeakerName = ""
	}
}

// Speakers returns the distinct raw labels in first-appearance order.
func (t *Transcript) Speakers() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, seg := range t.Segments {
		label := seg.Speaker
		if label == "" {
			label = UnknownSpeaker
		}
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	return labels
}

// UnresolvedSpeakers returns raw labels that have no entry in the given map.
func (t *Transcript) UnresolvedSpeakers(known SpeakerMap) []string {
	var unresolved []string
	for _, label := range t.Speakers() {
		if name, ok := known[label]; !ok || name == "" {
			unresolved = append(unresolved, label)
		}
	}
	return unresolved
}
