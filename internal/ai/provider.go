// Package ai implements text generation against remote chat-completion
// services.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/keshon/npc-mind/pkg/retrylimit"
)

// Message is one chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates text from a system and a user prompt. It satisfies
// mind.Generator.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Kind selects a provider implementation.
type Kind string

const (
	KindOpenAI       Kind = "openai"
	KindPollinations Kind = "pollinations"
	KindG4F          Kind = "g4f"
)

// Options configures New.
type Options struct {
	Kind          Kind
	APIKey        string
	Model         string
	BaseURL       string // overrides the provider endpoint when set
	G4FEngine     string
	Timeout       time.Duration
	RetryAttempts int
	RateLimit     float64 // initial requests per second, 0 disables limiting
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// New builds the provider named by opts.Kind wrapped in retry and adaptive
// rate limiting.
func New(opts Options) (Provider, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ai")
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	var base Provider
	switch Kind(strings.ToLower(string(opts.Kind))) {
	case KindOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		base = NewOpenAIProvider(opts.APIKey, opts.Model, opts.BaseURL, opts.Timeout, opts.HTTPClient)
	case KindPollinations:
		base = NewPollinationsProvider(opts.BaseURL, opts.Timeout, opts.HTTPClient)
	case KindG4F, "":
		base = NewG4FProvider(opts.G4FEngine, opts.BaseURL, opts.Timeout, opts.HTTPClient)
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", opts.Kind)
	}

	var lim *retrylimit.AdaptiveLimiter
	if opts.RateLimit > 0 {
		lim = retrylimit.NewAdaptiveLimiter(rate.Limit(opts.RateLimit), 0.2, rate.Limit(opts.RateLimit*4), 0.5, 0.5)
	}
	cfg := retrylimit.DefaultRetryConfig()
	if opts.RetryAttempts > 0 {
		cfg.MaxAttempts = opts.RetryAttempts
	}
	cfg.Logger = log
	log.Info("provider ready", zap.String("kind", string(opts.Kind)), zap.Int("attempts", cfg.MaxAttempts))
	return NewRetrying(base, lim, cfg, log), nil
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
	Err      error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.Code, e.Body)
}

// StatusCode implements retrylimit.HTTPError.
func (e *StatusError) StatusCode() int { return e.Code }

func (e *StatusError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot help (client errors other than
// 408 and 429).
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500 &&
		e.Code != http.StatusTooManyRequests && e.Code != http.StatusRequestTimeout
}
