package pipeline

import (
	"context"
	"strings"
	"unicode"
)

// ExtractionJob normalizes the raw event content into a plain-text
// transcript. Subtitle-format (WEBVTT) content is additionally parsed into
// timed speaker segments; anything else passes through as-is.
//
// Missing content is a legitimate terminal state for a run (a recording may
// not be transcribed yet), so it skips rather than fails.
type ExtractionJob struct{}

func NewExtractionJob() *ExtractionJob {
	return &ExtractionJob{}
}

func (j *ExtractionJob) Name() string {
	return "transcript_extraction"
}

func (j *ExtractionJob) Run(_ context.Context, jc *Context) Result {
	if jc.RawContent == "" {
		return Skipped("no raw content to process")
	}

	jc.Transcript = jc.RawContent
	if isVTT(jc.RawContent) {
		jc.Segments = parseVTT(jc.RawContent)
	}

	return Completed("extracted %d transcript segments", len(jc.Segments))
}

func isVTT(content string) bool {
	head := content
	if len(head) > 50 {
		head = head[:50]
	}
	return strings.Contains(head, "WEBVTT")
}

// parseVTT is a minimal WEBVTT cue parser: it understands timestamp lines,
// "Speaker: text" lines, and bare continuation lines. Malformed cues are
// dropped rather than failing the run.
func parseVTT(content string) []TranscriptSegment {
	var segments []TranscriptSegment
	var current TranscriptSegment

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "" || strings.HasPrefix(line, "WEBVTT") || isCueNumber(line):
			continue
		case strings.Contains(line, "-->"):
			times := strings.SplitN(line, "-->", 2)
			current.Start = strings.TrimSpace(times[0])
			current.End = ""
			if fields := strings.Fields(times[1]); len(fields) > 0 {
				current.End = fields[0]
			}
		default:
			if idx := strings.Index(line, ":"); idx > 0 && idx < 30 {
				current.Speaker = strings.TrimSpace(line[:idx])
				current.Text = strings.TrimSpace(line[idx+1:])
			} else {
				current.Text = strings.TrimSpace(current.Text + " " + line)
			}
			if current.Text != "" {
				segments = append(segments, current)
				current = TranscriptSegment{}
			}
		}
	}
	return segments
}

func isCueNumber(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
