package transcript

import (
	"fmt"
	"strings"
)

// FormatTimestamp formats seconds as MM:SS.
func FormatTimestamp(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// RenderText renders the transcript as "speaker: text" lines, optionally
// prefixed with an [MM:SS] timestamp.
func (t *Transcript) RenderText(includeTimestamps bool) string {
	var b strings.Builder
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if includeTimestamps {
			fmt.Fprintf(&b, "[%s] %s: %s\n", FormatTimestamp(seg.Start), seg.DisplayName(), text)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", seg.DisplayName(), text)
		}
	}
	return b.String()
}

// RenderSRT renders the transcript as a SubRip subtitle file with the speaker
// name bracketed before each line.
func (t *Transcript) RenderSRT() string {
	var b strings.Builder
	for i, seg := range t.Segments {
		end := seg.End
		if end <= seg.Start {
			end = seg.Start + 1
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n[%s] %s\n\n",
			i+1, srtTimestamp(seg.Start), srtTimestamp(end),
			seg.DisplayName(), strings.TrimSpace(seg.Text))
	}
	return b.String()
}

func srtTimestamp(seconds float64) string {
	s := int(seconds)
	millis := int((seconds - float64(s)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", s/3600, (s%3600)/60, s%60, millis)
}
