package llm

import "context"

// geminiProvider talks to Google's Gemini models over their
// OpenAI-compatible endpoint, which (unlike the other vendors here)
// mounts the compat routes directly under the API root instead of
// "/v1" — hence the empty pathPrefix passed to
// newOpenAICompatClientPrefix below.
//
//	gemini-2.5-flash       — chat, fast/cost-effective
//	gemini-2.5-pro         — chat, highest capability
//	gemini-embedding-001   — embedding, 3072 dim
type geminiProvider struct {
	base openAICompatClient
}

// NewGemini creates a provider for Google Gemini.
func NewGemini(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	return &geminiProvider{base: newOpenAICompatClientPrefix(cfg, "")}
}

func (p *geminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *geminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

func (p *geminiProvider) ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error) {
	return p.base.chatWithImages(ctx, req)
}
