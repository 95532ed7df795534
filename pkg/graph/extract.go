package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"casefile/pkg/ai"
	"casefile/pkg/logger"
	"casefile/pkg/transcribe"
	"casefile/pkg/transcript"
)

// ExtractionError reports a failed chunk extraction. It is the one tolerated
// failure in the pipeline: the chunk contributes an empty delta and
// processing continues, because losing one chunk's entities is preferable to
// discarding an entire file's graph.
type ExtractionError struct {
	ChunkIndex int
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract graph from chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type extractProperty struct {
	Name  string `json:"name" jsonschema_description:"Property name, e.g. role, description, type, content"`
	Value string `json:"value" jsonschema_description:"Property value"`
}

type extractNode struct {
	ID         string            `json:"id" jsonschema_description:"Human-readable entity identifier, e.g. John_Doe"`
	Type       string            `json:"type" jsonschema_description:"One of: Person, Location, Event, Evidence, Statement"`
	Properties []extractProperty `json:"properties" jsonschema_description:"Free-form properties of the entity"`
}

type extractRelationship struct {
	Source string `json:"source" jsonschema_description:"Identifier of the source entity"`
	Target string `json:"target" jsonschema_description:"Identifier of the target entity"`
	Type   string `json:"type" jsonschema_description:"General, timeless relationship type, e.g. INVOLVED_IN"`
}

type extractTimecode struct {
	ID    string   `json:"id" jsonschema_description:"Entity identifier the timecodes belong to"`
	Times []string `json:"times" jsonschema_description:"H:MM:SS timestamps of mentions, relative to the chunk start"`
}

type extractResponse struct {
	Nodes         []extractNode         `json:"nodes" jsonschema_description:"Entities identified in the transcript chunk"`
	Relationships []extractRelationship `json:"relationships" jsonschema_description:"Relationships identified in the transcript chunk"`
	Timecodes     []extractTimecode     `json:"timecodes" jsonschema_description:"When each entity is first mentioned"`
}

// Generate synthesizes a knowledge graph from the ordered transcript chunks
// of one file. Chunks are processed strictly in order; each extraction
// request carries the accumulator graph built so far as context. A chunk
// whose extraction fails contributes an empty delta and is logged, the rest
// of the file still lands in the graph. Only context cancellation aborts.
func Generate(
	ctx context.Context,
	aiClient ai.Client,
	chunks []transcribe.ChunkTranscript,
	caseID string,
) (Graph, error) {
	acc := New()

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return acc, ctx.Err()
		}

		delta, err := extractFromChunk(ctx, aiClient, acc, chunk)
		if err != nil {
			logger.Error(
				"[Graph] Chunk extraction failed, continuing with empty delta",
				"case_id", caseID,
				"file", chunk.Filename,
				"chunk", chunk.Index,
				"err", err,
			)
			continue
		}

		acc.Merge(delta)
	}

	return acc, nil
}

func extractFromChunk(
	ctx context.Context,
	aiClient ai.Client,
	current Graph,
	chunk transcribe.ChunkTranscript,
) (Graph, error) {
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return Graph{}, &ExtractionError{ChunkIndex: chunk.Index, Err: err}
	}

	prompt := fmt.Sprintf(ai.ExtractGraphPrompt, currentJSON, stripTimingMarkers(chunk.SRT))

	var res extractResponse
	err = aiClient.GenerateCompletionWithFormat(
		ctx,
		"extract_case_graph",
		"Extract entities, relationships and mention timecodes from a transcript chunk.",
		prompt,
		&res,
	)
	if err != nil {
		return Graph{}, &ExtractionError{ChunkIndex: chunk.Index, Err: err}
	}

	return convertDelta(res, chunk), nil
}

// convertDelta turns the extraction response into a graph delta, rewriting
// chunk-local timecodes into transcript-store keys of the chunk's source
// file.
func convertDelta(res extractResponse, chunk transcribe.ChunkTranscript) Graph {
	delta := New()

	for _, n := range res.Nodes {
		if n.ID == "" {
			continue
		}
		node := Node{ID: n.ID, Type: n.Type}
		if len(n.Properties) > 0 {
			node.Properties = make(map[string]string, len(n.Properties))
			for _, p := range n.Properties {
				if p.Name == "" {
					continue
				}
				node.Properties[p.Name] = p.Value
			}
		}
		delta.Nodes = append(delta.Nodes, node)
	}

	for _, r := range res.Relationships {
		if r.Source == "" || r.Target == "" || r.Type == "" {
			continue
		}
		delta.Relationships = append(delta.Relationships, Relationship(r))
	}

	for _, tc := range res.Timecodes {
		if tc.ID == "" {
			continue
		}
		for _, ts := range tc.Times {
			seconds, err := transcript.TimeToSeconds(ts)
			if err != nil {
				logger.Warn("[Graph] Skipping invalid timecode", "file", chunk.Filename, "chunk", chunk.Index, "timecode", ts)
				continue
			}
			key := transcript.Key(chunk.Filename, chunk.StartSecond+seconds)
			delta.Timecodes[tc.ID] = append(delta.Timecodes[tc.ID], key)
		}
	}

	return delta
}

func stripTimingMarkers(srt string) string {
	var b strings.Builder
	for _, line := range strings.Split(srt, "\n") {
		if strings.Contains(line, " --> ") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
