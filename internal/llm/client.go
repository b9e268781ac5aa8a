package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/inboxcopilot/triage-worker/internal/config"
)

var (
	// ErrUnsupportedProvider means LLM_PROVIDER names something we don't speak.
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
	// ErrInvalidOutput means the model returned unusable JSON after a retry.
	ErrInvalidOutput = errors.New("invalid llm output")
)

// Provider is a raw text-completion backend.
type Provider interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Client turns email fields into typed triage results. It prompts for strict
// JSON and retries once with the validation error appended when the first
// attempt comes back malformed.
type Client interface {
	Classify(ctx context.Context, pack ContextPack, email Email) (*Classification, error)
	Summarize(ctx context.Context, pack ContextPack, email Email) (*Summary, error)
	Draft(ctx context.Context, pack ContextPack, email Email, summary *Summary) (*Draft, error)
	Revise(ctx context.Context, pack ContextPack, currentDraft, instruction string) (*Revision, error)
}

type client struct {
	provider Provider
}

// New builds a Client from configuration, selecting the provider by name.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "", "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		return &client{provider: NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel)}, nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
		p, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini provider: %w", err)
		}
		return &client{provider: p}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.LLMProvider)
	}
}

// NewWithProvider wires a Client over an existing backend.
func NewWithProvider(p Provider) Client {
	return &client{provider: p}
}

func (c *client) Classify(ctx context.Context, pack ContextPack, email Email) (*Classification, error) {
	out := &Classification{}
	user := withOutputShape(classifyPrompt(pack, email), classificationShape)
	if err := c.completeJSON(ctx, user, 0.0, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) Summarize(ctx context.Context, pack ContextPack, email Email) (*Summary, error) {
	out := &Summary{}
	user := withOutputShape(summarizePrompt(pack, email), summaryShape)
	if err := c.completeJSON(ctx, user, 0.2, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) Draft(ctx context.Context, pack ContextPack, email Email, summary *Summary) (*Draft, error) {
	if summary == nil {
		summary = PlaceholderSummary()
	}
	out := &Draft{}
	user := withOutputShape(draftPrompt(pack, email, summary), draftShape)
	if err := c.completeJSON(ctx, user, 0.4, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) Revise(ctx context.Context, pack ContextPack, currentDraft, instruction string) (*Revision, error) {
	out := &Revision{}
	user := withOutputShape(revisePrompt(pack, currentDraft, instruction), revisionShape)
	if err := c.completeJSON(ctx, user, 0.3, out); err != nil {
		return nil, err
	}
	return out, nil
}

type validator interface {
	Validate() error
}

// completeJSON runs one completion, parses it into target, and validates.
// One retry: the second prompt carries the first attempt's error so the
// model can correct itself.
func (c *client) completeJSON(ctx context.Context, user string, temperature float64, target validator) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		prompt := user
		if attempt == 1 && lastErr != nil {
			prompt = user + "\n\nYour previous output was invalid. Fix it. Error:\n" + truncate(lastErr.Error(), 600)
		}

		text, err := c.provider.Complete(ctx, systemPrompt, prompt, temperature)
		if err != nil {
			return err
		}

		if err := decodeInto(text, target); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidOutput, lastErr)
}

func decodeInto(text string, target validator) error {
	raw := extractJSON(text)
	if raw == "" {
		return errors.New("empty llm response")
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("failed to parse llm JSON: %w", err)
	}
	return target.Validate()
}

// extractJSON pulls the JSON object out of a completion that may be wrapped
// in markdown fences or prose, by slicing from the first { to the last }.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")

	if startIdx == -1 || endIdx == -1 || startIdx > endIdx {
		// No object markers. Return as is and let the JSON parser fail
		// with a proper error.
		return content
	}

	return strings.TrimSpace(content[startIdx : endIdx+1])
}
