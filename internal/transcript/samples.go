package transcript

import (
	"sort"
	"strings"
)

const (
	// defaultSampleCount is how many sample lines are picked per speaker.
	defaultSampleCount = 8
	// minSampleLength filters out grunts and one-word replies.
	minSampleLength = 15
)

// Sample is one representative line for a speaker.
type Sample struct {
	Start float64 `json:"start"`
	Text  string  `json:"text"`
}

// SpeakerSummary describes one raw speaker for the naming step.
type SpeakerSummary struct {
	Speaker string   `json:"speaker"`
	Count   int      `json:"count"`
	Samples []Sample `json:"samples"`
}

// SpeakerSamples extracts representative sample lines for each raw speaker,
// spread across the session so a listener can place the voice. Speakers are
// ordered by segment count descending; the most talkative is usually the DM.
func (t *Transcript) SpeakerSamples(numSamples int) []SpeakerSummary {
	if numSamples <= 0 {
		numSamples = defaultSampleCount
	}

	counts := make(map[string]int)
	candidates := make(map[string][]Segment)
	var order []string

	for _, seg := range t.Segments {
		label := seg.Speaker
		if label == "" {
			label = UnknownSpeaker
		}
		if counts[label] == 0 {
			order = append(order, label)
		}
		counts[label]++
		if len(strings.TrimSpace(seg.Text)) > minSampleLength {
			candidates[label] = append(candidates[label], seg)
		}
	}

	summaries := make([]SpeakerSummary, 0, len(order))
	for _, label := range order {
		segs := candidates[label]
		var indices []int
		if len(segs) <= numSamples {
			for i := range segs {
				indices = append(indices, i)
			}
		} else {
			step := float64(len(segs)) / float64(numSamples)
			for i := 0; i < numSamples; i++ {
				indices = append(indices, int(float64(i)*step))
			}
		}

		samples := make([]Sample, 0, len(indices))
		for _, i := range indices {
			samples = append(samples, Sample{
				Start: segs[i].Start,
				Text:  strings.TrimSpace(segs[i].Text),
			})
		}
		summaries = append(summaries, SpeakerSummary{
			Speaker: label,
			Count:   counts[label],
			Samples: samples,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Count > summaries[j].Count
	})
	return summaries
}
