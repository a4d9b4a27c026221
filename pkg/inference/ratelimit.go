package inference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alessiagatto/documenter-agent/pkg/config"
	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
	"github.com/alessiagatto/documenter-agent/pkg/utils"
)

// rateLimitBufferFactor keeps the bucket below the advertised limit to absorb
// token estimation error.
const rateLimitBufferFactor = 0.9

// imageTokenEstimate is charged for the image part of a vision request.
const imageTokenEstimate = 765

const acquirePollInterval = 100 * time.Millisecond

// LimiterStats is a snapshot of a Limiter.
type LimiterStats struct {
	Model           string `json:"model"`
	AvailableTokens int    `json:"available_tokens"`
	MaxCapacity     int    `json:"max_capacity"`
	ActiveRequests  int    `json:"active_requests"`
	MaxConcurrency  int    `json:"max_concurrency"`
	TokenLimitHits  int64  `json:"token_limit_hits"`
	ConcurrencyHits int64  `json:"concurrency_hits"`
}

// Limiter is a token bucket combined with a concurrency semaphore. The bucket
// refills continuously at TokensPerMinute. A zero limit disables that half.
type Limiter struct {
	lastRefill time.Time
	now        func() time.Time
	model      string

	mu              sync.Mutex
	available       float64
	maxCapacity     int
	perSecond       float64
	active          int
	maxConcurrency  int
	tokenLimitHits  int64
	concurrencyHits int64
}

// NewLimiter creates a limiter for one endpoint's model. The bucket starts full.
func NewLimiter(model string, cfg config.RateLimitConfig) *Limiter {
	capacity := int(float64(cfg.TokensPerMinute) * rateLimitBufferFactor)
	return &Limiter{
		model:          model,
		now:            time.Now,
		lastRefill:     time.Now(),
		available:      float64(capacity),
		maxCapacity:    capacity,
		perSecond:      float64(cfg.TokensPerMinute) / 60,
		maxConcurrency: cfg.MaxConcurrency,
	}
}

// Acquire blocks until tokens and a concurrency slot are both available, then
// takes them together. The returned release func gives the slot back; tokens
// are spent. Requests larger than the bucket are clamped to its capacity so
// they wait for a full bucket instead of forever.
func (l *Limiter) Acquire(ctx context.Context, tokens int) (func(), error) {
	firstAttempt := true
	for {
		l.mu.Lock()
		l.refillLocked()

		need := tokens
		if l.maxCapacity > 0 && need > l.maxCapacity {
			need = l.maxCapacity
		}
		hasTokens := l.maxCapacity == 0 || l.available >= float64(need)
		hasSlot := l.maxConcurrency == 0 || l.active < l.maxConcurrency

		if hasTokens && hasSlot {
			if l.maxCapacity > 0 {
				l.available -= float64(need)
			}
			l.active++
			l.mu.Unlock()
			var once sync.Once
			return func() { once.Do(l.release) }, nil
		}

		if firstAttempt {
			if !hasTokens {
				l.tokenLimitHits++
				logx.Debug(ctx, "inference", "%s token limit hit, waiting for refill (need %d, have %.0f)",
					l.model, need, l.available)
			}
			if !hasSlot {
				l.concurrencyHits++
				logx.Debug(ctx, "inference", "%s concurrency limit hit (active %d/%d)",
					l.model, l.active, l.maxConcurrency)
			}
			firstAttempt = false
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, &llmerrors.Error{
				Type: llmerrors.ErrorTypeRateLimit,
				Err:  fmt.Errorf("waiting for %s rate limit: %w", l.model, ctx.Err()),
			}
		case <-time.After(acquirePollInterval):
		}
	}
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active--
}

func (l *Limiter) refillLocked() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now
	if elapsed <= 0 || l.maxCapacity == 0 {
		return
	}
	l.available += elapsed * l.perSecond
	if l.available > float64(l.maxCapacity) {
		l.available = float64(l.maxCapacity)
	}
}

// Stats returns current limiter statistics.
func (l *Limiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return LimiterStats{
		Model:           l.model,
		AvailableTokens: int(l.available),
		MaxCapacity:     l.maxCapacity,
		ActiveRequests:  l.active,
		MaxConcurrency:  l.maxConcurrency,
		TokenLimitHits:  l.tokenLimitHits,
		ConcurrencyHits: l.concurrencyHits,
	}
}

// RateLimitMiddleware acquires from l before each request. The estimate is
// the prompt's token count plus the requested output budget, plus a fixed
// charge per image. A nil counter estimates from the prompt length.
func RateLimitMiddleware(l *Limiter, counter *utils.TokenCounter) Middleware {
	estimate := func(prompt string, maxTokens int) int {
		return counter.CountTokens(prompt) + maxTokens
	}
	return func(next Client) Client {
		return WrapClient(next,
			func(ctx context.Context, req VisionRequest) (string, error) {
				release, err := l.Acquire(ctx, estimate(req.Prompt, req.MaxTokens)+imageTokenEstimate)
				if err != nil {
					return "", err
				}
				defer release()
				return next.Describe(ctx, req)
			},
			func(ctx context.Context, req TextRequest) (string, error) {
				release, err := l.Acquire(ctx, estimate(req.Prompt, req.MaxTokens))
				if err != nil {
					return "", err
				}
				defer release()
				return next.Complete(ctx, req)
			},
		)
	}
}
