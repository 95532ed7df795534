package queue

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"casefile/internal/cases"
	"casefile/pkg/ai"
	"casefile/pkg/transcribe"
)

type memCaseStore struct {
	cases   map[string]cases.Case
	history map[string][]cases.Status
}

func newMemCaseStore() *memCaseStore {
	return &memCaseStore{cases: map[string]cases.Case{}, history: map[string][]cases.Status{}}
}

func (m *memCaseStore) Get(ctx context.Context, id string) (cases.Case, error) {
	c, ok := m.cases[id]
	if !ok {
		return cases.Case{}, fmt.Errorf("case %s not found", id)
	}
	return c, nil
}

func (m *memCaseStore) Replace(ctx context.Context, c cases.Case) error {
	prev := m.cases[c.ID]
	if prev.Status != c.Status {
		m.history[c.ID] = append(m.history[c.ID], c.Status)
	}
	m.cases[c.ID] = c
	return nil
}

type memObjects struct {
	blobs map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{blobs: map[string][]byte{}}
}

func (m *memObjects) Get(ctx context.Context, container, key string) ([]byte, error) {
	b, ok := m.blobs[container+"/"+key]
	if !ok {
		return nil, fmt.Errorf("blob %s/%s not found", container, key)
	}
	return b, nil
}

func (m *memObjects) Put(ctx context.Context, container, key string, body []byte) error {
	m.blobs[container+"/"+key] = body
	return nil
}

// pipelineAI scripts both pipeline AI capabilities: transcription returns
// one SRT block per chunk, extraction returns one entity per chunk.
type pipelineAI struct {
	ai.Client

	transcriptions  int
	extractions     int
	failTranscribe  bool
	failExtractCall int // 1-based call that returns an error, 0 for none
}

func (f *pipelineAI) GenerateAudioTranscription(ctx context.Context, audio []byte, format string) (string, error) {
	f.transcriptions++
	if f.failTranscribe {
		return "", errors.New("transcription service unavailable")
	}
	return fmt.Sprintf("1\n00:00:00,000 --> 00:00:05,000\nChunk %d caption.\n", f.transcriptions), nil
}

func (f *pipelineAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "A short case summary.", nil
}

func (f *pipelineAI) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	f.extractions++
	if f.extractions == f.failExtractCall {
		return errors.New("malformed extraction response")
	}
	raw, err := json.Marshal(map[string]any{
		"nodes": []map[string]any{
			{"id": fmt.Sprintf("Entity_%d", f.extractions), "type": "Person"},
		},
		"timecodes": []map[string]any{
			{"id": fmt.Sprintf("Entity_%d", f.extractions), "times": []string{"0:00:02"}},
		},
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

type fakeIndexer struct {
	containers []string
	err        error
}

func (f *fakeIndexer) CreateIngestionJob(ctx context.Context, container string) error {
	if f.err != nil {
		return f.err
	}
	f.containers = append(f.containers, container)
	return nil
}

type fakeSummarizer struct {
	err error
}

func (f *fakeSummarizer) Generate(ctx context.Context, filename, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "Summary of " + filename, nil
}

// testWav builds an 8kHz mono 16-bit PCM file of the given duration.
func testWav(seconds int) []byte {
	samples := make([]byte, seconds*16000)
	for i := range samples {
		samples[i] = byte(i)
	}

	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(samples)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(8000))
	binary.Write(buf, binary.LittleEndian, uint32(16000))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(samples)))
	buf.Write(samples)
	return buf.Bytes()
}

type testEnv struct {
	processor *Processor
	store     *memCaseStore
	objects   *memObjects
	aiClient  *pipelineAI
	indexer   *fakeIndexer
}

// newTestEnv wires a processor over in-memory stores with a 3-minute
// uploaded recording that segments into three one-minute chunks.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemCaseStore()
	objects := newMemObjects()
	aiClient := &pipelineAI{}
	indexer := &fakeIndexer{}

	c := cases.New("c1", "Theft at 5th Ave")
	c.Status = cases.StatusQueued
	store.cases["c1"] = c
	objects.blobs["c1/int1.mp3"] = []byte("mp3-bytes")

	wav := testWav(180)
	processor := NewProcessor(ProcessorParams{
		Store:     store,
		Objects:   objects,
		AIClient:  aiClient,
		Summaries: &fakeSummarizer{},
		Indexer:   indexer,
		// budget fits exactly 60 seconds of 16000 B/s audio
		MaxChunkBytes: 44 + 60*16000,
		ScratchDir:    t.TempDir(),
	})
	processor.decode = func(ctx context.Context, srcPath, outDir string) (string, error) {
		out := filepath.Join(outDir, "decoded.wav")
		if err := os.WriteFile(out, wav, 0o600); err != nil {
			return "", err
		}
		return out, nil
	}

	return &testEnv{processor: processor, store: store, objects: objects, aiClient: aiClient, indexer: indexer}
}

func jobBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(JobMessage{CaseID: "c1", Filename: "int1.mp3", BlobURL: "c1/int1.mp3"})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestProcessAudioMessage(t *testing.T) {
	env := newTestEnv(t)

	if err := env.processor.ProcessAudioMessage(context.Background(), jobBody(t)); err != nil {
		t.Fatalf("ProcessAudioMessage() error = %v", err)
	}

	wantHistory := []cases.Status{cases.StatusProcessing, cases.StatusCompleted}
	if got := env.store.history["c1"]; len(got) != 2 || got[0] != wantHistory[0] || got[1] != wantHistory[1] {
		t.Errorf("status history = %v, want %v", got, wantHistory)
	}

	c := env.store.cases["c1"]
	if len(c.Files) != 1 || c.Files[0] != "int1.mp3" {
		t.Errorf("files = %v, want [int1.mp3]", c.Files)
	}

	for _, key := range []string{
		"c1-ingestion/int1.mp3__min00_00.txt",
		"c1-ingestion/int1.mp3__min01_00.txt",
		"c1-ingestion/int1.mp3__min02_00.txt",
	} {
		body, ok := env.objects.blobs[key]
		if !ok {
			t.Errorf("missing transcript artifact %s", key)
			continue
		}
		if !strings.HasPrefix(string(body), "Time: ") || !strings.Contains(string(body), "Text: Chunk") {
			t.Errorf("artifact %s content = %q", key, body)
		}
	}

	if len(c.Graph.Nodes) != 3 {
		t.Errorf("graph has %d nodes, want one per chunk", len(c.Graph.Nodes))
	}
	if got := c.Graph.Timecodes["Entity_2"]; len(got) != 1 || got[0] != "int1.mp3__min01_02" {
		t.Errorf("Entity_2 timecodes = %v, want [int1.mp3__min01_02]", got)
	}

	if !strings.Contains(c.Transcripts["int1.mp3"], "Chunk 1 caption.") {
		t.Errorf("transcript = %q", c.Transcripts["int1.mp3"])
	}
	if c.Summaries["int1.mp3"] != "Summary of int1.mp3" {
		t.Errorf("summary = %q", c.Summaries["int1.mp3"])
	}
	if len(env.indexer.containers) != 1 || env.indexer.containers[0] != "c1-ingestion" {
		t.Errorf("indexed containers = %v", env.indexer.containers)
	}
}

func TestProcessAudioMessageRedeliveryIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	for range 2 {
		if err := env.processor.ProcessAudioMessage(context.Background(), jobBody(t)); err != nil {
			t.Fatalf("ProcessAudioMessage() error = %v", err)
		}
	}

	c := env.store.cases["c1"]
	if len(c.Files) != 1 {
		t.Errorf("files = %v, want no duplicate after redelivery", c.Files)
	}
	if c.Status != cases.StatusCompleted {
		t.Errorf("status = %s, want %s", c.Status, cases.StatusCompleted)
	}
}

func TestProcessAudioMessageTranscriptionFailure(t *testing.T) {
	env := newTestEnv(t)
	env.aiClient.failTranscribe = true

	err := env.processor.ProcessAudioMessage(context.Background(), jobBody(t))
	var terr *transcribe.Error
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *transcribe.Error", err)
	}

	c := env.store.cases["c1"]
	if c.Status != cases.StatusError {
		t.Errorf("status = %s, want %s", c.Status, cases.StatusError)
	}
	if len(c.Files) != 0 {
		t.Errorf("files = %v, want unchanged", c.Files)
	}
}

func TestProcessAudioMessageToleratesOneFailedExtraction(t *testing.T) {
	env := newTestEnv(t)
	env.aiClient.failExtractCall = 2

	if err := env.processor.ProcessAudioMessage(context.Background(), jobBody(t)); err != nil {
		t.Fatalf("ProcessAudioMessage() error = %v", err)
	}

	c := env.store.cases["c1"]
	if c.Status != cases.StatusCompleted {
		t.Errorf("status = %s, want %s", c.Status, cases.StatusCompleted)
	}
	if c.Graph.FindNode("Entity_1") == nil || c.Graph.FindNode("Entity_3") == nil {
		t.Errorf("graph lost healthy chunks: %v", c.Graph.Nodes)
	}
	if len(c.Graph.Nodes) != 2 {
		t.Errorf("graph has %d nodes, want 2", len(c.Graph.Nodes))
	}
}

func TestProcessAudioMessageIndexingFailure(t *testing.T) {
	env := newTestEnv(t)
	env.indexer.err = errors.New("indexer down")

	if err := env.processor.ProcessAudioMessage(context.Background(), jobBody(t)); err == nil {
		t.Fatal("ProcessAudioMessage() did not surface indexing failure")
	}

	c := env.store.cases["c1"]
	if c.Status != cases.StatusError {
		t.Errorf("status = %s, want %s", c.Status, cases.StatusError)
	}
	// transcript artifacts were already written and stay durable
	if _, ok := env.objects.blobs["c1-ingestion/int1.mp3__min00_00.txt"]; !ok {
		t.Error("transcript artifacts missing after indexing failure")
	}
	if len(c.Files) != 0 {
		t.Errorf("files = %v, want unchanged", c.Files)
	}
}

func TestProcessAudioMessageSummaryFailureIsTolerated(t *testing.T) {
	env := newTestEnv(t)
	env.processor.summaries = &fakeSummarizer{err: errors.New("summary model down")}

	if err := env.processor.ProcessAudioMessage(context.Background(), jobBody(t)); err != nil {
		t.Fatalf("ProcessAudioMessage() error = %v", err)
	}

	c := env.store.cases["c1"]
	if c.Status != cases.StatusCompleted {
		t.Errorf("status = %s, want %s", c.Status, cases.StatusCompleted)
	}
	if _, ok := c.Summaries["int1.mp3"]; ok {
		t.Error("failed summary still recorded")
	}
}
