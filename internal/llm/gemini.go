// Package llm wraps the Gemini API behind a small text-in, text-out interface.
package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/rafabd1/climatesense/pkg/logger"
)

// Generator produces text for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("model returned no text")

type Config struct {
	APIKey        string
	ModelName     string
	Timeout       time.Duration
	RetryAttempts int
	// RetryBase is the first backoff interval; it doubles on every attempt.
	RetryBase time.Duration
}

type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	name    string
	timeout time.Duration
	retries uint64
	base    time.Duration
}

var _ Generator = (*Gemini)(nil)

// NewGemini creates a client. Without an API key it falls back to application
// default credentials.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.ModelName == "" {
		return nil, errors.New("LLM model name (llm.model_name) is not configured")
	}
	client, err := newClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	return &Gemini{
		client:  client,
		model:   client.GenerativeModel(cfg.ModelName),
		name:    cfg.ModelName,
		timeout: cfg.Timeout,
		retries: uint64(max(cfg.RetryAttempts, 0)),
		base:    cfg.RetryBase,
	}, nil
}

func newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	log := logger.FromContext(ctx)
	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		log.Warn("No LLM API key configured; trying application default credentials")
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create genai client")
	}
	return client, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

// Generate sends prompt as a single user turn, retrying transient failures
// with exponential backoff.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	log := logger.FromContext(ctx).With("model", g.name)
	backoff := retry.WithMaxRetries(g.retries, retry.WithJitter(100*time.Millisecond, retry.NewExponential(g.base)))

	var text string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		resp, err := g.model.GenerateContent(callCtx, genai.Text(prompt))
		if err != nil {
			if Retryable(err) && ctx.Err() == nil {
				log.Warn("LLM call failed, retrying", "error", describe(err))
				return retry.RetryableError(err)
			}
			return err
		}
		text, err = ResponseText(resp)
		return err
	})
	if err != nil {
		log.Error("LLM call failed", "error", describe(err))
		return "", errors.Wrap(err, "generate content")
	}
	return text, nil
}

// Retryable reports whether err is worth another attempt: rate limiting,
// server errors and per-call deadlines.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func describe(err error) string {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Error() + " (code " + http.StatusText(apiErr.Code) + ")"
	}
	return err.Error()
}

// ResponseText joins the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp != nil && resp.PromptFeedback != nil {
			return "", errors.Wrapf(ErrEmptyResponse, "prompt blocked: %v", resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// ListModels returns the names of models that support generateContent.
func ListModels(ctx context.Context, apiKey string) ([]string, error) {
	client, err := newClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var names []string
	it := client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "list models")
		}
		if SupportsGenerate(m.SupportedGenerationMethods) {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

func SupportsGenerate(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}
