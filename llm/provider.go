// Package llm is the vendor-transport layer C4 LLMDispatcher and C5
// EmbeddingService are built on: one small HTTP client per provider,
// all implementing the same Chat/Embed capability interface so neither
// capability needs to know which vendor backs a given model.
package llm

import (
	"context"
	"fmt"
)

// Provider is the capability every LLM vendor client exposes to the
// dispatcher and embedding service: a chat completion call and a
// batch embedding call, both vendor-agnostic from the caller's side.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VisionProvider extends Provider with image understanding.
type VisionProvider interface {
	Provider
	// ChatWithImages sends a chat request that includes images.
	ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" for JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
}

// VisionChatRequest is a chat request with image content.
type VisionChatRequest struct {
	Model       string          `json:"model"`
	Messages    []VisionMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// VisionMessage represents a chat message that may contain images.
type VisionMessage struct {
	Role    string          `json:"role"`
	Content []ContentPart   `json:"content"`
}

// ContentPart is either text or an image in a vision message.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL contains a base64 or URL reference to an image.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures a single vendor client. It mirrors the Provider
// field of a ragcore LLMConfig entry one-to-one.
type Config struct {
	Provider string `json:"provider"` // ollama, lmstudio, openrouter, openai, groq, xai, gemini, custom
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
}

// vendorConstructors maps a Config.Provider name to its client
// constructor, checked by NewProvider and by tests that want to walk
// every registered vendor without hardcoding the list twice.
var vendorConstructors = map[string]func(Config) Provider{
	"ollama":     NewOllama,
	"lmstudio":   NewLMStudio,
	"openrouter": NewOpenRouter,
	"openai":     NewOpenAI,
	"groq":       NewGroq,
	"xai":        NewXAI,
	"gemini":     NewGemini,
	"custom":     NewOpenAICompat,
}

// NewProvider builds the Provider named by cfg.Provider.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm provider not specified")
	}
	ctor, ok := vendorConstructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	return ctor(cfg), nil
}
