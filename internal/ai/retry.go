package ai

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/keshon/npc-mind/pkg/retrylimit"
)

// Retrying wraps a Provider with retries and an optional adaptive limiter.
// Permanent client errors and cancellation are not retried.
type Retrying struct {
	next Provider
	lim  *retrylimit.AdaptiveLimiter
	cfg  retrylimit.RetryConfig
	log  *zap.Logger
}

// NewRetrying wraps next. lim may be nil.
func NewRetrying(next Provider, lim *retrylimit.AdaptiveLimiter, cfg retrylimit.RetryConfig, log *zap.Logger) *Retrying {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = log
	}
	return &Retrying{next: next, lim: lim, cfg: cfg, log: log}
}

func (r *Retrying) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var out string
	err := retrylimit.WithRetryConfig(ctx, func(ctx context.Context) error {
		s, err := r.next.Generate(ctx, systemPrompt, userPrompt)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Permanent() {
				return retrylimit.Fatal(err)
			}
			return err
		}
		out = s
		return nil
	}, r.lim, r.cfg)
	if err != nil {
		r.log.Warn("generation failed", zap.Error(err))
		return "", err
	}
	return out, nil
}
