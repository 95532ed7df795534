package cases

import (
	"context"
	"fmt"
	"strings"

	"casefile/pkg/graph"
	"casefile/pkg/logger"
)

// Store persists case documents. Documents are read and replaced whole.
type Store interface {
	Create(ctx context.Context, c Case) error
	Get(ctx context.Context, id string) (Case, error)
	Replace(ctx context.Context, c Case) error
	List(ctx context.Context) ([]Summary, error)
}

// Summary is the listing projection of a case.
type Summary struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// ObjectStore is the blob storage the service needs for uploads and
// artifact cleanup.
type ObjectStore interface {
	Put(ctx context.Context, container, key string, body []byte) error
	DeleteContainer(ctx context.Context, container string) error
}

// Enqueuer hands an uploaded file to the job processor.
type Enqueuer interface {
	Enqueue(ctx context.Context, caseID, filename, blobURL string) error
}

type Service struct {
	store   Store
	objects ObjectStore
	jobs    Enqueuer
}

type ServiceParams struct {
	Store   Store
	Objects ObjectStore
	Jobs    Enqueuer
}

func NewService(params ServiceParams) *Service {
	return &Service{
		store:   params.Store,
		objects: params.Objects,
		jobs:    params.Jobs,
	}
}

func (s *Service) CreateCase(ctx context.Context, id, description string) (Case, error) {
	if id == "" || description == "" {
		return Case{}, fmt.Errorf("case id and description are required")
	}

	c := New(id, description)
	if err := s.store.Create(ctx, c); err != nil {
		return Case{}, err
	}
	return c, nil
}

// UploadAudio stores an audio file in the case's upload container, enqueues
// a processing job for it and moves the case to queued. Only mp3 uploads
// are accepted.
func (s *Service) UploadAudio(ctx context.Context, caseID, filename string, data []byte) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".mp3") {
		return fmt.Errorf("only mp3 files are allowed, got %q", filename)
	}

	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		return err
	}

	if err := s.objects.Put(ctx, c.UploadContainer(), filename, data); err != nil {
		return err
	}

	blobURL := fmt.Sprintf("%s/%s", c.UploadContainer(), filename)
	if err := s.jobs.Enqueue(ctx, caseID, filename, blobURL); err != nil {
		return err
	}

	if err := c.SetStatus(StatusQueued); err != nil {
		// a job already running for this case keeps its status; the new
		// message is queued regardless
		logger.Warn("[Cases] Upload while case is mid-processing", "case_id", caseID, "status", c.Status)
		return nil
	}
	return s.store.Replace(ctx, c)
}

// DeleteAllFiles removes every uploaded audio file and transcript artifact
// of a case and resets its file list and graph.
func (s *Service) DeleteAllFiles(ctx context.Context, caseID string) error {
	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		return err
	}

	if err := s.objects.DeleteContainer(ctx, c.UploadContainer()); err != nil {
		return err
	}
	if err := s.objects.DeleteContainer(ctx, c.IngestionContainer()); err != nil {
		return err
	}

	c.Files = []string{}
	c.Graph = graph.New()
	c.Summaries = map[string]string{}
	c.Transcripts = map[string]string{}
	return s.store.Replace(ctx, c)
}
