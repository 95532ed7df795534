package cases

import (
	"errors"
	"reflect"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusCreated, StatusQueued, true},
		{StatusQueued, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusError, true},
		{StatusError, StatusQueued, true},
		{StatusError, StatusProcessing, true},
		{StatusCompleted, StatusQueued, true},
		{StatusCreated, StatusProcessing, false},
		{StatusCreated, StatusCompleted, false},
		{StatusQueued, StatusCompleted, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusError, false},
		{StatusProcessing, StatusQueued, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSetStatus(t *testing.T) {
	c := New("c1", "Theft at 5th Ave")
	if c.Status != StatusCreated {
		t.Fatalf("new case status = %s, want %s", c.Status, StatusCreated)
	}

	for _, to := range []Status{StatusQueued, StatusProcessing, StatusCompleted} {
		if err := c.SetStatus(to); err != nil {
			t.Fatalf("SetStatus(%s) error = %v", to, err)
		}
	}

	err := c.SetStatus(StatusProcessing)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("SetStatus from completed to processing error = %v, want TransitionError", err)
	}
	if c.Status != StatusCompleted {
		t.Errorf("status changed on rejected transition: %s", c.Status)
	}
}

func TestAppendFileDedupes(t *testing.T) {
	c := New("c1", "desc")
	c.AppendFile("int1.mp3")
	c.AppendFile("int2.mp3")
	c.AppendFile("int1.mp3")

	want := []string{"int1.mp3", "int2.mp3"}
	if !reflect.DeepEqual(c.Files, want) {
		t.Errorf("files = %v, want %v", c.Files, want)
	}
}

func TestContainers(t *testing.T) {
	c := New("c1", "desc")
	if got := c.UploadContainer(); got != "c1" {
		t.Errorf("UploadContainer() = %q, want %q", got, "c1")
	}
	if got := c.IngestionContainer(); got != "c1-ingestion" {
		t.Errorf("IngestionContainer() = %q, want %q", got, "c1-ingestion")
	}
}
