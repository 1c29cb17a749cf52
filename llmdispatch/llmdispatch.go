// Package llmdispatch implements C4: ordered multi-provider fallback
// with exponential backoff, structured-output validation with one
// repair retry, budget guarding, and cost-ledger accounting. The
// Provider capability interface and per-vendor client shape follow
// llm/provider.go directly (Chat/Embed methods, Config-driven
// construction via llm.NewProvider); the repair-retry-then-escalate
// pattern generalizes reasoning/validator.go's single-pass validation
// scoring into a mandatory one-shot repair loop per §4.5.
package llmdispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kesslerio/ragcore/llm"
	"github.com/kesslerio/ragcore/model"
)

const (
	initialBackoff = 15 * time.Second
	maxBackoff     = 180 * time.Second
	maxAttempts    = 5
)

// Budget tracks spend against a fixed ceiling (session or daily).
type Budget struct {
	LimitUSD float64
	SpentUSD float64
}

// Remaining reports the unspent budget; never negative.
func (b *Budget) Remaining() float64 {
	r := b.LimitUSD - b.SpentUSD
	if r < 0 {
		return 0
	}
	return r
}

// Ledger is an append-only sink for cost records (§4.5 "cost is... logged").
type Ledger interface {
	Record(model.CostRecord)
}

// Dispatcher tries an ordered list of providers in preference order,
// advancing on provider-level failure and retrying within a provider
// with exponential backoff.
type Dispatcher struct {
	specs     []model.ProviderSpec
	providers map[string]llm.Provider // keyed by spec.Provider+"/"+spec.ModelID
	budget    *Budget
	ledger    Ledger
	sleep     func(time.Duration) // overridable for tests
}

// New returns a Dispatcher over specs in preference order. factory
// builds (or returns a cached) llm.Provider for a given spec; it is
// called once per distinct provider/model pair.
func New(specs []model.ProviderSpec, budget *Budget, ledger Ledger, factory func(model.ProviderSpec) (llm.Provider, error)) (*Dispatcher, error) {
	d := &Dispatcher{specs: specs, budget: budget, ledger: ledger, sleep: time.Sleep, providers: map[string]llm.Provider{}}
	for _, spec := range specs {
		key := providerKey(spec)
		if _, ok := d.providers[key]; ok {
			continue
		}
		p, err := factory(spec)
		if err != nil {
			return nil, fmt.Errorf("llmdispatch: building provider %s: %w", key, err)
		}
		d.providers[key] = p
	}
	return d, nil
}

func providerKey(spec model.ProviderSpec) string {
	return spec.Provider + "/" + spec.ModelID
}

// CompleteResult is the outcome of a successful Complete/CompleteStructured call.
type CompleteResult struct {
	Text      string
	UsedModel string
	USD       float64
}

// Complete runs a plain-text completion across the provider fallback
// chain, per §4.5.
func (d *Dispatcher) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (CompleteResult, error) {
	if d.budget.Remaining() <= 0 {
		return CompleteResult{}, model.ErrBudgetExceeded
	}

	var lastErr error
	for _, spec := range d.specs {
		if ctx.Err() != nil {
			return CompleteResult{}, ctx.Err()
		}
		if d.budget.Remaining() <= 0 {
			return CompleteResult{}, model.ErrBudgetExceeded
		}

		text, usd, err := d.completeWithRetry(ctx, spec, prompt, maxTokens, temperature)
		if err != nil {
			lastErr = err
			continue
		}
		d.spend(spec, "complete", "", usd)
		return CompleteResult{Text: text, UsedModel: spec.ModelID, USD: usd}, nil
	}
	if lastErr == nil {
		lastErr = model.ErrAllProvidersFailed
	}
	return CompleteResult{}, fmt.Errorf("%w: %v", model.ErrAllProvidersFailed, lastErr)
}

func (d *Dispatcher) completeWithRetry(ctx context.Context, spec model.ProviderSpec, prompt string, maxTokens int, temperature float64) (string, float64, error) {
	p := d.providers[providerKey(spec)]
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				return "", 0, ctx.Err()
			}
			d.sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		resp, err := p.Chat(ctx, llm.ChatRequest{
			Model:       spec.ModelID,
			Messages:    []llm.Message{{Role: "user", Content: prompt}},
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err == nil {
			usd := cost(spec, resp.PromptTokens, resp.CompletionTokens, resp.Content, prompt)
			return resp.Content, usd, nil
		}
		lastErr = err
		if !retriable(err) {
			break
		}
	}
	return "", 0, lastErr
}

// retriable decides whether an error is worth another attempt within the
// same provider (network/5xx/429/timeout) versus advancing immediately
// (auth failure, invalid request). Conservative default: retry, since
// llm.Provider implementations wrap transport errors without a typed
// taxonomy the dispatcher can switch on.
func retriable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"400", "401", "403", "invalid_request", "unauthorized"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}

// cost computes USD spend from token counts, falling back to a
// chars/4 token estimate when the provider did not report counts.
func cost(spec model.ProviderSpec, promptTokens, completionTokens int, completion, prompt string) float64 {
	if promptTokens == 0 {
		promptTokens = int(math.Ceil(float64(len(prompt)) / 4))
	}
	if completionTokens == 0 {
		completionTokens = int(math.Ceil(float64(len(completion)) / 4))
	}
	return float64(promptTokens)/1000*spec.USDPer1kPrompt + float64(completionTokens)/1000*spec.USDPer1kCompletion
}

func (d *Dispatcher) spend(spec model.ProviderSpec, op, docID string, usd float64) {
	d.budget.SpentUSD += usd
	if d.ledger != nil {
		d.ledger.Record(model.CostRecord{
			Provider: spec.Provider,
			Model:    spec.ModelID,
			USD:      usd,
			Op:       op,
			DocID:    docID,
		})
	}
}

// CompleteStructured runs a schema-validated completion: on a
// validation failure, one repair attempt re-prompts with the validation
// error appended; a second failure escalates to the next provider
// (§4.5).
func (d *Dispatcher) CompleteStructured(ctx context.Context, prompt string, schema func([]byte) error, maxTokens int) (CompleteResult, error) {
	if d.budget.Remaining() <= 0 {
		return CompleteResult{}, model.ErrBudgetExceeded
	}

	var lastErr error
	for _, spec := range d.specs {
		if ctx.Err() != nil {
			return CompleteResult{}, ctx.Err()
		}
		if d.budget.Remaining() <= 0 {
			return CompleteResult{}, model.ErrBudgetExceeded
		}

		text, usd, err := d.structuredWithRepair(ctx, spec, prompt, schema, maxTokens)
		if err != nil {
			lastErr = err
			continue
		}
		d.spend(spec, "complete_structured", "", usd)
		return CompleteResult{Text: text, UsedModel: spec.ModelID, USD: usd}, nil
	}
	if lastErr == nil {
		lastErr = model.ErrAllProvidersFailed
	}
	return CompleteResult{}, fmt.Errorf("%w: %v", model.ErrAllProvidersFailed, lastErr)
}

func (d *Dispatcher) structuredWithRepair(ctx context.Context, spec model.ProviderSpec, prompt string, schema func([]byte) error, maxTokens int) (string, float64, error) {
	text, usd, err := d.completeWithRetry(ctx, spec, prompt, maxTokens, 0)
	if err != nil {
		return "", 0, err
	}

	payload := extractJSON(text)
	if verr := schema([]byte(payload)); verr == nil {
		return payload, usd, nil
	} else {
		repairPrompt := fmt.Sprintf("%s\n\nThe previous response failed schema validation with error: %s\nReturn ONLY corrected JSON matching the schema.", prompt, verr)
		repaired, usd2, err := d.completeWithRetry(ctx, spec, repairPrompt, maxTokens, 0)
		if err != nil {
			return "", 0, err
		}
		repairedPayload := extractJSON(repaired)
		if verr2 := schema([]byte(repairedPayload)); verr2 != nil {
			return "", 0, fmt.Errorf("%w: %v", model.ErrSchemaValidation, verr2)
		}
		return repairedPayload, usd + usd2, nil
	}
}

// extractJSON pulls the first balanced {...} object out of text, for
// providers without native JSON mode that wrap JSON in prose or code
// fences.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}

// JSONSchemaValidator returns a schema func that unmarshals payload into
// a value of the same type as target and reports any JSON error,
// suitable for CompleteStructured's schema parameter.
func JSONSchemaValidator(target any) func([]byte) error {
	return func(payload []byte) error {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.DisallowUnknownFields()
		return dec.Decode(target)
	}
}
