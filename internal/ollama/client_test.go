package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		ollamaURL     string
		model         string
		expectError   bool
		expectedModel string
	}{
		{
			name:          "default values",
			ollamaURL:     "",
			model:         "",
			expectError:   false,
			expectedModel: DefaultModel,
		},
		{
			name:          "custom URL and model",
			ollamaURL:     "http://custom-ollama:11434",
			model:         "llama3.2",
			expectError:   false,
			expectedModel: "llama3.2",
		},
		{
			name:          "custom URL, default model",
			ollamaURL:     "http://localhost:11434",
			model:         "",
			expectError:   false,
			expectedModel: DefaultModel,
		},
		{
			name:        "invalid URL",
			ollamaURL:   "://invalid-url",
			model:       "test",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.ollamaURL, tt.model)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("Expected client but got nil")
			}
			if client.model != tt.expectedModel {
				t.Errorf("Expected model %s, got %s", tt.expectedModel, client.model)
			}
			if client.timeout != DefaultTimeout {
				t.Errorf("Expected timeout %v, got %v", DefaultTimeout, client.timeout)
			}
		})
	}
}

// fakeOllama returns a test server that answers /api/generate with the given
// model output, and records the prompt it received
func fakeOllama(t *testing.T, output string, gotPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if gotPrompt != nil {
			*gotPrompt = req.Prompt
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":    req.Model,
			"response": output,
			"done":     true,
		})
	}))
}

func TestGenerateResponse(t *testing.T) {
	var prompt string
	srv := fakeOllama(t, "  the model answer\n", &prompt)
	defer srv.Close()

	client, err := New(srv.URL, "test-model")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	got, err := client.GenerateResponse(context.Background(), "describe Acme")
	if err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}

	if got != "the model answer" {
		t.Errorf("Expected trimmed response, got %q", got)
	}
	if prompt != "describe Acme" {
		t.Errorf("Expected prompt to pass through, got %q", prompt)
	}
}

func TestGenerateResponseCanceledContext(t *testing.T) {
	srv := fakeOllama(t, "never seen", nil)
	defer srv.Close()

	client, err := New(srv.URL, "test-model")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.GenerateResponse(ctx, "prompt"); err == nil {
		t.Error("Expected error with canceled context")
	}
}

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		expected    int
		expectError bool
	}{
		{
			name:     "clean JSON array",
			output:   `[{"text":"Jane Smith","type":"PERSON","confidence":0.92},{"text":"Acme","type":"ORG","confidence":0.88}]`,
			expected: 2,
		},
		{
			name: "array with surrounding prose",
			output: `Here are the entities I found:
[{"text":"Amsterdam","type":"LOCATION","confidence":0.8}]
Let me know if you need more.`,
			expected: 1,
		},
		{
			name:     "no entities",
			output:   `[]`,
			expected: 0,
		},
		{
			name:        "no JSON array in response",
			output:      "I could not find any entities in this post.",
			expectError: true,
		},
		{
			name:        "malformed JSON",
			output:      `[{"text":"Acme","type":`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeOllama(t, tt.output, nil)
			defer srv.Close()

			client, err := New(srv.URL, "test-model")
			if err != nil {
				t.Fatalf("Failed to create client: %v", err)
			}

			candidates, err := client.ExtractEntities(context.Background(), "Acme hired Jane Smith in Amsterdam")

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("ExtractEntities failed: %v", err)
			}
			if len(candidates) != tt.expected {
				t.Errorf("Expected %d candidates, got %d", tt.expected, len(candidates))
			}
		})
	}
}

func TestExtractEntitiesPromptContainsPost(t *testing.T) {
	var prompt string
	srv := fakeOllama(t, `[]`, &prompt)
	defer srv.Close()

	client, err := New(srv.URL, "test-model")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	post := "Tim Cook announced Apple earnings of $89.5 billion"
	if _, err := client.ExtractEntities(context.Background(), post); err != nil {
		t.Fatalf("ExtractEntities failed: %v", err)
	}

	if !strings.Contains(prompt, post) {
		t.Error("Expected the post text inside the prompt")
	}
	for _, entityType := range []string{"PERSON", "ORG", "LOCATION", "MONEY"} {
		if !strings.Contains(prompt, entityType) {
			t.Errorf("Expected prompt to name entity type %s", entityType)
		}
	}
}

func TestEntityCandidateDecoding(t *testing.T) {
	raw := `{"text":"Acme Corp","type":"ORG","confidence":0.75}`

	var candidate EntityCandidate
	if err := json.Unmarshal([]byte(raw), &candidate); err != nil {
		t.Fatalf("Failed to unmarshal EntityCandidate: %v", err)
	}

	if candidate.Text != "Acme Corp" {
		t.Errorf("Expected text 'Acme Corp', got %q", candidate.Text)
	}
	if candidate.Type != "ORG" {
		t.Errorf("Expected type ORG, got %q", candidate.Type)
	}
	if candidate.Confidence != 0.75 {
		t.Errorf("Expected confidence 0.75, got %v", candidate.Confidence)
	}
}
