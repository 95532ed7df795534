package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"casefile/pkg/ai"
)

const srtBody = "1\n00:00:00,000 --> 00:00:05,000\nA caption.\n"

func newAudioClient(t *testing.T, handler http.HandlerFunc) *CaseOpenAIClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewCaseOpenAIClient(NewCaseOpenAIClientParams{
		AudioModel: "whisper-1",
		AudioURL:   server.URL,
		AudioKey:   "test-key",
	})
}

func TestGenerateAudioTranscriptionSRT(t *testing.T) {
	var gotFormat, gotModel string
	client := newAudioClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("request path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		gotFormat = r.FormValue("response_format")
		gotModel = r.FormValue("model")

		// Subtitle output is served as a plain body, not JSON.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(srtBody))
	})

	got, err := client.GenerateAudioTranscription(context.Background(), []byte("riff"), "srt")
	if err != nil {
		t.Fatalf("GenerateAudioTranscription() error = %v", err)
	}
	if got != srtBody {
		t.Errorf("transcription = %q, want the subtitle body", got)
	}
	if gotFormat != "srt" {
		t.Errorf("response_format = %q, want srt", gotFormat)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", gotModel)
	}
	if client.GetMetrics().DurationMs < 0 {
		t.Errorf("negative duration recorded")
	}
}

func TestGenerateAudioTranscriptionJSON(t *testing.T) {
	client := newAudioClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "A caption."}`))
	})

	got, err := client.GenerateAudioTranscription(context.Background(), []byte("riff"), "json")
	if err != nil {
		t.Fatalf("GenerateAudioTranscription() error = %v", err)
	}
	if got != "A caption." {
		t.Errorf("transcription = %q, want %q", got, "A caption.")
	}
}

func TestGenerateAudioTranscriptionRejectedKey(t *testing.T) {
	calls := 0
	client := newAudioClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "incorrect api key"}}`))
	})

	_, err := client.GenerateAudioTranscription(context.Background(), []byte("riff"), "srt")
	var permErr *ai.PermanentError
	if !errors.As(err, &permErr) {
		t.Fatalf("GenerateAudioTranscription() error = %v, want ai.PermanentError", err)
	}
	if calls != 1 {
		t.Errorf("rejected request was submitted %d times, want 1", calls)
	}
}
