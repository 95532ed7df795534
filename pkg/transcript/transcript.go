// Package transcript parses subtitle-formatted transcription output into
// timecoded segments and persists each segment as an independently
// addressable artifact, keyed by source filename and minute:second offset.
package transcript

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const rangeSeparator = " --> "

// Segment is one (timestamp, text) pair extracted from subtitle output.
// Offset is the segment's start in whole seconds from the beginning of the
// source file, not the chunk it was transcribed in.
type Segment struct {
	Range   string // original time-range line, e.g. "00:01:05,200 --> 00:01:09,900"
	Caption string
	Offset  int
}

// TimeToSeconds converts a wall-clock style H:MM:SS[,mmm] timestamp to total
// whole seconds. Fractional seconds are truncated.
func TimeToSeconds(ts string) (int, error) {
	ts = strings.TrimSpace(ts)
	if comma := strings.IndexAny(ts, ",."); comma != -1 {
		ts = ts[:comma]
	}

	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		total = total*60 + n
	}

	return total, nil
}

// Key builds the transcript-store key tying a file offset to its persisted
// artifact, e.g. "int1.mp3__min02_05" for 125 seconds into int1.mp3.
func Key(filename string, offsetSeconds int) string {
	minutes, seconds := offsetSeconds/60, offsetSeconds%60
	return fmt.Sprintf("%s__min%02d_%02d", filename, minutes, seconds)
}

// ArtifactName is the object key of a segment's stored artifact.
func ArtifactName(filename string, offsetSeconds int) string {
	return Key(filename, offsetSeconds) + ".txt"
}

// ParseSRT scans subtitle-formatted text for time-range markers and pairs
// each with the text line that follows it. baseOffset is the chunk's start
// offset within the source file, added to every chunk-local timestamp so
// segments from different chunks cannot collide on the same key. Lines with
// no recognizable marker are skipped.
func ParseSRT(srt string, baseOffset int) []Segment {
	lines := strings.Split(srt, "\n")

	var segments []Segment
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, rangeSeparator) {
			continue
		}

		start := strings.SplitN(line, rangeSeparator, 2)[0]
		startSeconds, err := TimeToSeconds(start)
		if err != nil {
			continue
		}

		caption := ""
		if i+1 < len(lines) {
			caption = strings.TrimSpace(lines[i+1])
			i++
		}

		segments = append(segments, Segment{
			Range:   line,
			Caption: caption,
			Offset:  baseOffset + startSeconds,
		})
	}

	return segments
}

// ObjectStore is the blob interface the transcript store writes through.
type ObjectStore interface {
	Put(ctx context.Context, container string, key string, body []byte) error
}

// StoreSegments persists each segment under its offset-derived artifact key
// in the given container. Writing the same key again overwrites the previous
// artifact, so replaying a chunk is idempotent. Writes run concurrently but
// bounded.
func StoreSegments(
	ctx context.Context,
	store ObjectStore,
	container string,
	filename string,
	segments []Segment,
) error {
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(8)

	for _, segment := range segments {
		seg := segment
		eg.Go(func() error {
			content := fmt.Sprintf("Time: %s\nText: %s\n", seg.Range, seg.Caption)
			if err := store.Put(gCtx, container, ArtifactName(filename, seg.Offset), []byte(content)); err != nil {
				return fmt.Errorf("failed to store transcript segment %s: %w", Key(filename, seg.Offset), err)
			}
			return nil
		})
	}

	return eg.Wait()
}

// PlainText joins segment captions in order, dropping timing markers. The
// result feeds graph extraction prompts and per-file summaries.
func PlainText(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg.Caption == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(seg.Caption)
	}
	return b.String()
}
