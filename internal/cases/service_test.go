package cases

import (
	"context"
	"fmt"
	"testing"

	"casefile/pkg/graph"
)

type memStore struct {
	cases map[string]Case
}

func newMemStore() *memStore {
	return &memStore{cases: map[string]Case{}}
}

func (m *memStore) Create(ctx context.Context, c Case) error {
	if _, ok := m.cases[c.ID]; ok {
		return fmt.Errorf("case %s already exists", c.ID)
	}
	m.cases[c.ID] = c
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (Case, error) {
	c, ok := m.cases[id]
	if !ok {
		return Case{}, fmt.Errorf("case %s not found", id)
	}
	return c, nil
}

func (m *memStore) Replace(ctx context.Context, c Case) error {
	if _, ok := m.cases[c.ID]; !ok {
		return fmt.Errorf("case %s not found", c.ID)
	}
	m.cases[c.ID] = c
	return nil
}

func (m *memStore) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	for _, c := range m.cases {
		out = append(out, Summary{ID: c.ID, Description: c.Description, Status: c.Status})
	}
	return out, nil
}

type memObjects struct {
	blobs map[string][]byte // "container/key"
}

func newMemObjects() *memObjects {
	return &memObjects{blobs: map[string][]byte{}}
}

func (m *memObjects) Put(ctx context.Context, container, key string, body []byte) error {
	m.blobs[container+"/"+key] = body
	return nil
}

func (m *memObjects) DeleteContainer(ctx context.Context, container string) error {
	for k := range m.blobs {
		if len(k) > len(container) && k[:len(container)+1] == container+"/" {
			delete(m.blobs, k)
		}
	}
	return nil
}

type memEnqueuer struct {
	enqueued []string // "caseID/filename"
}

func (m *memEnqueuer) Enqueue(ctx context.Context, caseID, filename, blobURL string) error {
	m.enqueued = append(m.enqueued, caseID+"/"+filename)
	return nil
}

func newService() (*Service, *memStore, *memObjects, *memEnqueuer) {
	store := newMemStore()
	objects := newMemObjects()
	jobs := &memEnqueuer{}
	return NewService(ServiceParams{Store: store, Objects: objects, Jobs: jobs}), store, objects, jobs
}

func TestCreateCase(t *testing.T) {
	svc, store, _, _ := newService()

	c, err := svc.CreateCase(context.Background(), "c1", "Theft at 5th Ave")
	if err != nil {
		t.Fatalf("CreateCase() error = %v", err)
	}
	if c.Status != StatusCreated {
		t.Errorf("status = %s, want %s", c.Status, StatusCreated)
	}
	if _, err := svc.CreateCase(context.Background(), "c1", "dup"); err == nil {
		t.Error("duplicate CreateCase() did not error")
	}
	if _, err := svc.CreateCase(context.Background(), "", "desc"); err == nil {
		t.Error("CreateCase() with empty id did not error")
	}
	if len(store.cases) != 1 {
		t.Errorf("store has %d cases, want 1", len(store.cases))
	}
}

func TestUploadAudio(t *testing.T) {
	svc, store, objects, jobs := newService()
	if _, err := svc.CreateCase(context.Background(), "c1", "desc"); err != nil {
		t.Fatal(err)
	}

	if err := svc.UploadAudio(context.Background(), "c1", "int1.mp3", []byte("audio")); err != nil {
		t.Fatalf("UploadAudio() error = %v", err)
	}

	if _, ok := objects.blobs["c1/int1.mp3"]; !ok {
		t.Error("audio blob not stored in upload container")
	}
	if len(jobs.enqueued) != 1 || jobs.enqueued[0] != "c1/int1.mp3" {
		t.Errorf("enqueued = %v, want one job for c1/int1.mp3", jobs.enqueued)
	}
	if store.cases["c1"].Status != StatusQueued {
		t.Errorf("status = %s, want %s", store.cases["c1"].Status, StatusQueued)
	}
}

func TestUploadAudioRejectsNonMP3(t *testing.T) {
	svc, _, objects, jobs := newService()
	if _, err := svc.CreateCase(context.Background(), "c1", "desc"); err != nil {
		t.Fatal(err)
	}

	if err := svc.UploadAudio(context.Background(), "c1", "notes.txt", []byte("x")); err == nil {
		t.Fatal("UploadAudio() accepted a non-mp3 file")
	}
	if len(objects.blobs) != 0 || len(jobs.enqueued) != 0 {
		t.Error("rejected upload still touched storage or queue")
	}
}

func TestUploadAudioReQueuesAfterError(t *testing.T) {
	svc, store, _, _ := newService()
	if _, err := svc.CreateCase(context.Background(), "c1", "desc"); err != nil {
		t.Fatal(err)
	}
	c := store.cases["c1"]
	c.Status = StatusError
	store.cases["c1"] = c

	if err := svc.UploadAudio(context.Background(), "c1", "int2.mp3", []byte("audio")); err != nil {
		t.Fatalf("UploadAudio() error = %v", err)
	}
	if store.cases["c1"].Status != StatusQueued {
		t.Errorf("status = %s, want %s", store.cases["c1"].Status, StatusQueued)
	}
}

func TestUploadAudioWhileProcessingKeepsStatus(t *testing.T) {
	svc, store, _, jobs := newService()
	if _, err := svc.CreateCase(context.Background(), "c1", "desc"); err != nil {
		t.Fatal(err)
	}
	c := store.cases["c1"]
	c.Status = StatusProcessing
	store.cases["c1"] = c

	if err := svc.UploadAudio(context.Background(), "c1", "int2.mp3", []byte("audio")); err != nil {
		t.Fatalf("UploadAudio() error = %v", err)
	}
	if store.cases["c1"].Status != StatusProcessing {
		t.Errorf("status = %s, want %s", store.cases["c1"].Status, StatusProcessing)
	}
	if len(jobs.enqueued) != 1 {
		t.Errorf("enqueued = %v, want the new job regardless of status", jobs.enqueued)
	}
}

func TestDeleteAllFiles(t *testing.T) {
	svc, store, objects, _ := newService()
	if _, err := svc.CreateCase(context.Background(), "c1", "desc"); err != nil {
		t.Fatal(err)
	}

	c := store.cases["c1"]
	c.Files = []string{"int1.mp3"}
	c.Graph.Nodes = append(c.Graph.Nodes, graph.Node{ID: "John_Doe", Type: graph.TypePerson})
	c.Summaries["int1.mp3"] = "summary"
	c.Transcripts["int1.mp3"] = "transcript"
	store.cases["c1"] = c

	objects.blobs["c1/int1.mp3"] = []byte("audio")
	objects.blobs["c1-ingestion/int1.mp3__min00_00.txt"] = []byte("segment")
	objects.blobs["c2/other.mp3"] = []byte("unrelated")

	if err := svc.DeleteAllFiles(context.Background(), "c1"); err != nil {
		t.Fatalf("DeleteAllFiles() error = %v", err)
	}

	if len(objects.blobs) != 1 {
		t.Errorf("blobs remaining = %v, want only the unrelated case", objects.blobs)
	}
	got := store.cases["c1"]
	if len(got.Files) != 0 || len(got.Graph.Nodes) != 0 || len(got.Summaries) != 0 || len(got.Transcripts) != 0 {
		t.Errorf("case not reset: %+v", got)
	}
}
