package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"casefile/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GenerateAudioTranscription transcribes audio data using the configured
// audio model. The format parameter selects the response format; "srt"
// yields subtitle-formatted output with timing markers.
func (c *CaseOpenAIClient) GenerateAudioTranscription(
	ctx context.Context,
	audio []byte,
	format string,
) (string, error) {
	if c.AudioClient == nil {
		return "", fmt.Errorf("audio client not configured")
	}

	params := openai.AudioTranscriptionNewParams{
		File:  bytes.NewReader(audio),
		Model: openai.AudioModel(c.audioModel),
	}
	if format != "" {
		params.ResponseFormat = openai.AudioResponseFormat(format)
	}

	start := time.Now()

	var text string
	switch params.ResponseFormat {
	case "", openai.AudioResponseFormatJSON, openai.AudioResponseFormatVerboseJSON, openai.AudioResponseFormatDiarizedJSON:
		transcription, err := c.AudioClient.Audio.Transcriptions.New(ctx, params)
		if err != nil {
			return "", classifyError(err)
		}
		text = transcription.Text
	default:
		// srt, vtt and text responses arrive as a plain body, not JSON, so
		// the decoded Transcription struct would stay empty. Capture the raw
		// body instead.
		var raw string
		_, err := c.AudioClient.Audio.Transcriptions.New(ctx, params, option.WithResponseBodyInto(&raw))
		if err != nil {
			return "", classifyError(err)
		}
		text = raw
	}

	// OpenAI doesn't return token usage for audio
	c.modifyMetrics(ai.ModelMetrics{
		DurationMs: time.Since(start).Milliseconds(),
	})

	return text, nil
}

// classifyError marks 4xx responses as permanent so retry loops upstream
// stop resubmitting requests the endpoint has already rejected.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return &ai.PermanentError{Err: err}
	}
	return err
}
