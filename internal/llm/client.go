// Package llm adapts the OpenAI API to the document assistant: assistants,
// vector stores and files for the remote corpus, threads and streamed runs
// for conversations, and streamed chat completions.
package llm

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// HTTPClient is used for streamed runs. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// ChatMessage is a chat completion message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the OpenAI backend.
type Client struct {
	client  *openai.Client
	http    *http.Client
	apiKey  string
	baseURL string
	model   string
}

// NewClient creates a new OpenAI client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = baseURL

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	config.HTTPClient = httpClient

	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}

	return &Client{
		client:  openai.NewClientWithConfig(config),
		http:    httpClient,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "openai"
}

// Model returns the default model.
func (c *Client) Model() string {
	return c.model
}
