// Package assistant drives the deployment chat assistant backed by an
// OpenAI-compatible chat completion API.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"log/slog"

	"github.com/Mayuresh-22/NimbusWave/pkg/config"
)

const systemPrompt = `You are a helpful AI assistant of NimbusWave, an AI-powered edge deployment platform that lets users deploy and scale their JavaScript/TypeScript web apps. And you are the ai assistant that navigates users through the deployment process.
You'll be given tools (functions) to call when required.

Tools you can use:
"saveProjectName": setProjectName, requires value: string
"saveProjectFramework": setProjectFramework, requires value: string,
"saveProjectDescription": setProjectDescription, requires value: string,
"saveProjectStatus": setProjectStatus, requires value: string,
"initDeployment": initDeployment, does not require value

Simple deployment process:
- User uploads their /dist or /build folder on the platform
- Collect essential information like project name, framework, and javascript/typescript.
- The deploy app on the global edge network

Framework supported:
- Vite React (vite_react)
- React (react)
- Vue (vue)

You should respond only and only in JSON of following format: (Other formats will be penalised)
{
  "message": string;
  "tool": string | null;
  "value": string | null;
  "thought": string <your private thought>;
}
DO NOT get involved in non-deployment/Irrelevant questions. (Otherwise you will be penalised)
Ask next question after one is answered. (Otherwise you will be penalised)
`

// Turn is one message in a chat transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the assistant's structured answer, including any tool call it
// wants the client to execute.
type Reply struct {
	Message string  `json:"message"`
	Tool    *string `json:"tool"`
	Value   *string `json:"value"`
	Thought string  `json:"thought"`
}

// CompletionClient produces one assistant reply for a transcript.
type CompletionClient interface {
	Complete(ctx context.Context, turns []Turn) (*Reply, error)
}

// GroqClient talks to the Groq chat completion endpoint.
type GroqClient struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGroqClient returns a completion client for the configured model.
func NewGroqClient(cfg config.APIConfig, logger *slog.Logger) *GroqClient {
	return &GroqClient{
		baseURL:    strings.TrimRight(cfg.GroqBaseURL, "/"),
		apiKey:     cfg.GroqAPIKey,
		model:      cfg.AssistantModel,
		maxTokens:  cfg.AssistantMaxTokens,
		httpClient: &http.Client{Timeout: cfg.UpstreamTimeout},
		logger:     logger,
	}
}

type completionRequest struct {
	Messages       []Turn         `json:"messages"`
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	TopP           float64        `json:"top_p"`
	Stream         bool           `json:"stream"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the system prompt plus the transcript and parses the
// model's JSON reply. An empty completion yields a canned fallback instead
// of an error.
func (c *GroqClient) Complete(ctx context.Context, turns []Turn) (*Reply, error) {
	messages := make([]Turn, 0, len(turns)+1)
	messages = append(messages, Turn{Role: "system", Content: systemPrompt})
	messages = append(messages, turns...)

	body, err := json.Marshal(completionRequest{
		Messages:       messages,
		Model:          c.model,
		Temperature:    1,
		MaxTokens:      c.maxTokens,
		TopP:           1,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/openai/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("assistant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assistant: completion request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("assistant: decode completion response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("assistant: completion error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return &Reply{Message: "I'm sorry, I don't understand. Can you please rephrase?"}, nil
	}

	var reply Reply
	if err := json.Unmarshal([]byte(decoded.Choices[0].Message.Content), &reply); err != nil {
		c.logger.Warn("assistant returned non-JSON content", "error", err)
		return &Reply{Message: "I'm sorry, I don't understand. Can you please rephrase?"}, nil
	}
	return &reply, nil
}
