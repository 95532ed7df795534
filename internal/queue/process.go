package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"casefile/internal/cases"
	"casefile/pkg/ai"
	"casefile/pkg/audio"
	"casefile/pkg/graph"
	"casefile/pkg/logger"
	"casefile/pkg/transcribe"
	"casefile/pkg/transcript"
)

// CaseStore is the slice of case persistence the worker needs.
type CaseStore interface {
	Get(ctx context.Context, id string) (cases.Case, error)
	Replace(ctx context.Context, c cases.Case) error
}

// ObjectStore reads uploaded audio and writes transcript artifacts.
type ObjectStore interface {
	Get(ctx context.Context, container, key string) ([]byte, error)
	Put(ctx context.Context, container, key string, body []byte) error
}

// Indexer creates the external indexing job for a case's ingestion
// container.
type Indexer interface {
	CreateIngestionJob(ctx context.Context, container string) error
}

// Summarizer produces a per-file transcript summary.
type Summarizer interface {
	Generate(ctx context.Context, filename, text string) (string, error)
}

type Processor struct {
	store         CaseStore
	objects       ObjectStore
	aiClient      ai.Client
	summaries     Summarizer
	indexer       Indexer
	maxChunkBytes int64
	scratchDir    string
	decode        func(ctx context.Context, srcPath, outDir string) (string, error)
}

type ProcessorParams struct {
	Store         CaseStore
	Objects       ObjectStore
	AIClient      ai.Client
	Summaries     Summarizer
	Indexer       Indexer
	MaxChunkBytes int64
	ScratchDir    string
}

func NewProcessor(params ProcessorParams) *Processor {
	maxChunkBytes := params.MaxChunkBytes
	if maxChunkBytes <= 0 {
		maxChunkBytes = 25 * 1024 * 1024
	}
	scratchDir := params.ScratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Processor{
		store:         params.Store,
		objects:       params.Objects,
		aiClient:      params.AIClient,
		summaries:     params.Summaries,
		indexer:       params.Indexer,
		maxChunkBytes: maxChunkBytes,
		scratchDir:    scratchDir,
		decode:        audio.DecodeToWAV,
	}
}

type fileResult struct {
	graph      graph.Graph
	transcript string
	summary    string
}

// ProcessAudioMessage handles one queued upload end to end: status to
// processing, download, segment, transcribe, store transcript artifacts,
// extract the graph, trigger indexing, then persist the case as completed.
// A non-nil return leaves the message unacked for redelivery; the case ends
// in error status.
func (p *Processor) ProcessAudioMessage(ctx context.Context, body []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal job message: %w", err)
	}

	c, err := p.store.Get(ctx, msg.CaseID)
	if err != nil {
		return err
	}

	if err := c.SetStatus(cases.StatusProcessing); err != nil {
		// redelivery after a crash between persist and ack lands here
		logger.Warn("[Queue] Unexpected case status at job start", "case_id", msg.CaseID, "status", c.Status)
		c.Status = cases.StatusProcessing
	}
	if err := p.store.Replace(ctx, c); err != nil {
		return err
	}

	result, err := p.processFile(ctx, c, msg)
	if err != nil {
		logger.Error("[Queue] Failed to process audio file", "case_id", msg.CaseID, "file", msg.Filename, "err", err)
		p.markError(ctx, msg.CaseID)
		return err
	}

	return p.persistResult(ctx, msg, result)
}

func (p *Processor) processFile(ctx context.Context, c cases.Case, msg JobMessage) (fileResult, error) {
	data, err := p.objects.Get(ctx, c.UploadContainer(), msg.Filename)
	if err != nil {
		return fileResult{}, err
	}

	scratchID, err := gonanoid.New()
	if err != nil {
		return fileResult{}, err
	}
	srcPath := filepath.Join(p.scratchDir, scratchID+filepath.Ext(msg.Filename))
	if err := os.WriteFile(srcPath, data, 0o600); err != nil {
		return fileResult{}, err
	}
	defer os.Remove(srcPath)

	wavPath, err := p.decode(ctx, srcPath, p.scratchDir)
	if err != nil {
		return fileResult{}, err
	}
	defer os.Remove(wavPath)

	f, err := os.Open(wavPath)
	if err != nil {
		return fileResult{}, err
	}
	defer f.Close()

	segmenter, err := audio.NewSegmenter(f, p.maxChunkBytes)
	if err != nil {
		return fileResult{}, err
	}

	chunks, err := transcribe.TranscribeFile(ctx, p.aiClient, segmenter, msg.Filename)
	if err != nil {
		return fileResult{}, err
	}

	var segments []transcript.Segment
	for _, chunk := range chunks {
		segments = append(segments, transcript.ParseSRT(chunk.SRT, chunk.StartSecond)...)
	}
	if err := transcript.StoreSegments(ctx, p.objects, c.IngestionContainer(), msg.Filename, segments); err != nil {
		return fileResult{}, err
	}
	logger.Info("[Queue] Transcript stored", "case_id", msg.CaseID, "file", msg.Filename, "segments", len(segments))

	g, err := graph.Generate(ctx, p.aiClient, chunks, msg.CaseID)
	if err != nil {
		return fileResult{}, err
	}

	fullText := transcript.PlainText(segments)

	summaryText := ""
	if p.summaries != nil {
		summaryText, err = p.summaries.Generate(ctx, msg.Filename, fullText)
		if err != nil {
			// summaries are derived data; a failed one never fails the file
			logger.Warn("[Queue] Failed to generate summary", "case_id", msg.CaseID, "file", msg.Filename, "err", err)
			summaryText = ""
		}
	}

	if err := p.indexer.CreateIngestionJob(ctx, c.IngestionContainer()); err != nil {
		return fileResult{}, err
	}

	return fileResult{graph: g, transcript: fullText, summary: summaryText}, nil
}

// persistResult folds the file's output into a fresh read of the case
// document and marks it completed.
func (p *Processor) persistResult(ctx context.Context, msg JobMessage, result fileResult) error {
	c, err := p.store.Get(ctx, msg.CaseID)
	if err != nil {
		return err
	}

	c.Graph.Merge(result.graph)
	c.AppendFile(msg.Filename)
	if c.Transcripts == nil {
		c.Transcripts = map[string]string{}
	}
	c.Transcripts[msg.Filename] = result.transcript
	if result.summary != "" {
		if c.Summaries == nil {
			c.Summaries = map[string]string{}
		}
		c.Summaries[msg.Filename] = result.summary
	}

	if err := c.SetStatus(cases.StatusCompleted); err != nil {
		logger.Warn("[Queue] Unexpected case status at job end", "case_id", msg.CaseID, "status", c.Status)
		c.Status = cases.StatusCompleted
	}

	if err := p.store.Replace(ctx, c); err != nil {
		return err
	}

	logger.Info("[Queue] Audio file processed", "case_id", msg.CaseID, "file", msg.Filename)
	return nil
}

func (p *Processor) markError(ctx context.Context, caseID string) {
	c, err := p.store.Get(ctx, caseID)
	if err != nil {
		logger.Error("[Queue] Failed to load case for error status", "case_id", caseID, "err", err)
		return
	}
	if err := c.SetStatus(cases.StatusError); err != nil {
		c.Status = cases.StatusError
	}
	if err := p.store.Replace(ctx, c); err != nil {
		logger.Error("[Queue] Failed to persist error status", "case_id", caseID, "err", err)
	}
}
