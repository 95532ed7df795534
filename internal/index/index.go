// Package index triggers the external search indexer that makes a case's
// transcript artifacts queryable. Job creation is keyed by container name
// and is idempotent on the indexer side.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Error reports a failed indexing trigger for a container.
type Error struct {
	Container string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to create ingestion job for container %s: %v", e.Container, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	endpoint       string
	apiKey         string
	searchEndpoint string
	httpClient     *http.Client
}

type ClientParams struct {
	Endpoint       string
	APIKey         string
	SearchEndpoint string
	HTTPClient     *http.Client
}

func NewClient(params ClientParams) *Client {
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:       params.Endpoint,
		apiKey:         params.APIKey,
		searchEndpoint: params.SearchEndpoint,
		httpClient:     httpClient,
	}
}

type jobConnection struct {
	Kind     string `json:"kind"`
	Endpoint string `json:"endpoint,omitempty"`
}

type jobDatasource struct {
	Kind             string         `json:"kind"`
	ContainerName    string         `json:"containerName"`
	ChunkingSettings map[string]int `json:"chunkingSettings"`
}

type jobPayload struct {
	Kind                    string        `json:"kind"`
	SearchServiceConnection jobConnection `json:"searchServiceConnection"`
	Datasource              jobDatasource `json:"datasource"`
	CompletionAction        int           `json:"completionAction"`
}

// CreateIngestionJob creates or refreshes the indexing job for one
// container. Transient failures are retried with exponential backoff before
// the error surfaces.
func (c *Client) CreateIngestionJob(ctx context.Context, container string) error {
	payload := jobPayload{
		Kind: "system",
		SearchServiceConnection: jobConnection{
			Kind:     "EndpointWithManagedIdentity",
			Endpoint: c.searchEndpoint,
		},
		Datasource: jobDatasource{
			Kind:             "Storage",
			ContainerName:    container,
			ChunkingSettings: map[string]int{"maxChunkSizeInTokens": 2048},
		},
		CompletionAction: 1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Container: container, Err: err}
	}

	url := fmt.Sprintf("%s/ingestion/jobs/%s", c.endpoint, container)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("api-key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		res, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return nil
		}

		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		err = fmt.Errorf("indexer returned %d: %s", res.StatusCode, msg)
		if res.StatusCode >= 400 && res.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	err = backoff.Retry(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx),
	)
	if err != nil {
		return &Error{Container: container, Err: err}
	}
	return nil
}
