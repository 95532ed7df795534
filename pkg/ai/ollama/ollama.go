package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"casefile/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// CaseOllamaClient implements the ai.Client interface against a locally
// hosted Ollama server. Audio transcription is not available through Ollama;
// deployments using this adapter pair it with an OpenAI-compatible audio
// endpoint.
type CaseOllamaClient struct {
	extractionModel string
	summaryModel    string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *api.Client
}

// NewCaseOllamaClientParams contains configuration options for creating a
// new CaseOllamaClient.
type NewCaseOllamaClientParams struct {
	ExtractionModel string
	SummaryModel    string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewCaseOllamaClient creates a new Ollama-based AI client connecting to the
// server at BaseURL (or the default if empty).
func NewCaseOllamaClient(params NewCaseOllamaClientParams) (*CaseOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &CaseOllamaClient{
		extractionModel: params.ExtractionModel,
		summaryModel:    params.SummaryModel,

		reqLock: semaphore.NewWeighted(maxConcurrent),

		Client: api.NewClient(u, httpClient),
	}, nil
}
