package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aanand-mishra/students-sync/internal/types"
)

const defaultOllamaTimeout = 2 * time.Minute

// Ollama asks a local Ollama server to write the summary.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama returns a generator talking to the Ollama API at baseURL
// (e.g. http://localhost:11434) using model.
func NewOllama(baseURL, model string, timeout time.Duration) (*Ollama, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("summary.NewOllama: base url is required")
	}
	if model == "" {
		return nil, errors.New("summary.NewOllama: model is required")
	}
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}

	return &Ollama{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *Ollama) Summarize(ctx context.Context, student types.Student) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  o.model,
		Prompt: Prompt(student),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("summary.Ollama: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("summary.Ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summary.Ollama: request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("summary.Ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("summary.Ollama: decode: %w", err)
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", errors.New("summary.Ollama: empty response")
	}
	return text, nil
}
