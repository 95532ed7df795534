// Package transcribe drives the external transcription capability over an
// audio file's chunk sequence, collecting per-chunk subtitle output in order.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"casefile/pkg/ai"
	"casefile/pkg/audio"
	"casefile/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

// Error reports a failed chunk transcription. It aborts the whole file:
// there is no partial-file success, the file is retried from scratch via
// queue redelivery.
type Error struct {
	Filename   string
	ChunkIndex int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to transcribe chunk %d of %s: %v", e.ChunkIndex, e.Filename, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ChunkSource yields audio chunks in order and io.EOF when exhausted.
// audio.Segmenter is the production implementation.
type ChunkSource interface {
	Next() (audio.Chunk, error)
}

// ChunkTranscript is the subtitle-formatted transcription of one chunk,
// tagged with its source filename and file-cumulative start offset.
type ChunkTranscript struct {
	Index       int
	StartSecond int
	Filename    string
	SRT         string
}

const maxAttempts = 3

// TranscribeFile submits each chunk of source to the transcription
// capability and returns the ordered per-chunk subtitle output. Chunks are
// processed strictly sequentially; the downstream offset math depends on
// order. Transient per-chunk failures are retried with exponential backoff
// before the file is given up on.
func TranscribeFile(
	ctx context.Context,
	aiClient ai.Client,
	source ChunkSource,
	filename string,
) ([]ChunkTranscript, error) {
	var transcripts []ChunkTranscript

	for {
		chunk, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		logger.Debug("[Transcribe] Submitting chunk", "file", filename, "chunk", chunk.Index)

		var srt string
		operation := func() error {
			var tErr error
			srt, tErr = aiClient.GenerateAudioTranscription(ctx, chunk.Data, "srt")
			var permErr *ai.PermanentError
			if errors.As(tErr, &permErr) {
				// Rejected request, not a transient failure. Retrying would
				// only resubmit the same chunk to the same refusal.
				return backoff.Permanent(tErr)
			}
			return tErr
		}
		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1),
			ctx,
		)
		if err := backoff.Retry(operation, policy); err != nil {
			return nil, &Error{Filename: filename, ChunkIndex: chunk.Index, Err: err}
		}

		transcripts = append(transcripts, ChunkTranscript{
			Index:       chunk.Index,
			StartSecond: chunk.StartSecond,
			Filename:    filename,
			SRT:         srt,
		})
	}

	if len(transcripts) == 0 {
		return nil, &Error{Filename: filename, ChunkIndex: 0, Err: errors.New("audio produced no chunks")}
	}

	return transcripts, nil
}
