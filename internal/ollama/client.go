package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultModel   = "gpt-oss:20b"
	DefaultTimeout = 120 * time.Second
)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// New creates a new Ollama client
func New(ollamaURL, model string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultModel
	}

	// Parse the base URL
	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	// Create client with the provided URL
	client := api.NewClient(baseURL, http.DefaultClient)

	return &Client{
		client:  client,
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

// GenerateResponse generates a response from the LLM
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	log.Printf("Ollama: Sending request to model %s (timeout: %v)", c.model, c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: new(bool), // false
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})

	if err != nil {
		log.Printf("Ollama: Generation failed: %v", err)
		return "", fmt.Errorf("generation failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	log.Printf("Ollama: Response received (%d chars)", len(result))
	return result, nil
}

// EntityCandidate is one entity proposed by the model. Spans are located
// in the source text by the caller.
type EntityCandidate struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// ExtractEntities asks the model for the named entities in a post.
func (c *Client) ExtractEntities(ctx context.Context, text string) ([]EntityCandidate, error) {
	prompt := fmt.Sprintf(`Extract the named entities from the following social media post.

For each entity, identify:
- The exact text of the entity as it appears in the post
- Type: PERSON, ORG, LOCATION, MONEY, PERCENT, DATE, TIME, or PRODUCT
- Confidence level between 0.0 and 1.0

Rules:
- Copy entity text verbatim from the post, do not paraphrase
- Job titles (CEO, VP, Director) are not entities
- Do not invent entities that are not in the post

Return ONLY a JSON array of objects with fields: text, type, confidence.
Return [] if the post contains no entities.

Post:
%s

Entities (JSON array):`, text)

	response, err := c.GenerateResponse(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// Parse JSON response
	var candidates []EntityCandidate

	// Try to find JSON array in response
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start >= 0 && end > start {
		jsonStr := response[start : end+1]
		if err := json.Unmarshal([]byte(jsonStr), &candidates); err != nil {
			return nil, fmt.Errorf("failed to parse entities JSON: %w", err)
		}
	} else {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	return candidates, nil
}
