package ollama

import (
	"context"
	"errors"
)

// GenerateAudioTranscription is not supported by Ollama.
func (c *CaseOllamaClient) GenerateAudioTranscription(
	ctx context.Context,
	audio []byte,
	format string,
) (string, error) {
	return "", errors.New("audio transcription is not supported by the ollama adapter")
}
