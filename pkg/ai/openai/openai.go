package openai

import (
	"sync"

	"casefile/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// CaseOpenAIClient implements ai.Client using OpenAI-compatible endpoints.
// Chat and audio can be served by different deployments, so each gets its
// own client and credentials.
type CaseOpenAIClient struct {
	extractionModel string
	summaryModel    string
	audioModel      string

	chatURL  string
	chatKey  string
	audioURL string
	audioKey string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient  *openai.Client
	AudioClient *openai.Client
}

// NewCaseOpenAIClientParams defines the configuration for creating a
// CaseOpenAIClient.
//
// ExtractionModel is used for schema-constrained graph extraction,
// SummaryModel for plain completions, AudioModel for transcription.
// Empty URLs fall back to the default OpenAI endpoint.
type NewCaseOpenAIClientParams struct {
	ExtractionModel string
	SummaryModel    string
	AudioModel      string

	ChatURL  string
	ChatKey  string
	AudioURL string
	AudioKey string
}

// NewCaseOpenAIClient creates a new OpenAI-backed AI client configured with
// the provided parameters.
func NewCaseOpenAIClient(params NewCaseOpenAIClientParams) *CaseOpenAIClient {
	return &CaseOpenAIClient{
		extractionModel: params.ExtractionModel,
		summaryModel:    params.SummaryModel,
		audioModel:      params.AudioModel,

		chatURL:  params.ChatURL,
		chatKey:  params.ChatKey,
		audioURL: params.AudioURL,
		audioKey: params.AudioKey,

		ChatClient:  newOpenaiClient(params.ChatURL, params.ChatKey),
		AudioClient: newOpenaiClient(params.AudioURL, params.AudioKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
