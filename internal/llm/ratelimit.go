package llm

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Endpoint groups share one token bucket and one concurrency semaphore.
const (
	EndpointChat        = "chat"
	EndpointCompletions = "completions"
	EndpointEmbeddings  = "embeddings"
	EndpointImages      = "images"
	EndpointAudio       = "audio"
	EndpointModerations = "moderations"
	EndpointModels      = "models"
	EndpointResponses   = "responses"
)

type EndpointLimit struct {
	Concurrency int
	Rate        rate.Limit
	Burst       int
}

var DefaultEndpointLimits = map[string]EndpointLimit{
	EndpointImages: {Concurrency: 2, Rate: 1, Burst: 2},
	EndpointAudio:  {Concurrency: 2, Rate: 1, Burst: 2},
}

type EndpointLimiter struct {
	fallback   EndpointLimit
	overrides  map[string]EndpointLimit
	semaphores map[string]chan struct{}
	limiters   map[string]*rate.Limiter
	mu         sync.Mutex
}

func NewEndpointLimiter(fallback EndpointLimit, overrides map[string]EndpointLimit) *EndpointLimiter {
	if fallback.Concurrency <= 0 {
		fallback.Concurrency = 8
	}
	if fallback.Burst <= 0 {
		fallback.Burst = 1
	}
	return &EndpointLimiter{
		fallback:   fallback,
		overrides:  overrides,
		semaphores: make(map[string]chan struct{}),
		limiters:   make(map[string]*rate.Limiter),
	}
}

func (l *EndpointLimiter) Acquire(ctx context.Context, endpoint string) error {
	limiter, semaphore := l.get(endpoint)
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	select {
	case semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *EndpointLimiter) Release(endpoint string) {
	_, semaphore := l.get(endpoint)
	select {
	case <-semaphore:
	default:
	}
}

func (l *EndpointLimiter) get(endpoint string) (*rate.Limiter, chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[endpoint]; ok {
		return lim, l.semaphores[endpoint]
	}

	cfg := l.fallback
	if o, ok := l.overrides[endpoint]; ok {
		cfg = o
	}
	lim := rate.NewLimiter(cfg.Rate, cfg.Burst)
	sem := make(chan struct{}, cfg.Concurrency)
	l.limiters[endpoint] = lim
	l.semaphores[endpoint] = sem
	return lim, sem
}

type LimiterStats struct {
	Concurrency int     `json:"concurrency"`
	InUse       int     `json:"in_use"`
	Rate        float64 `json:"rate"`
}

func (l *EndpointLimiter) Stats() map[string]LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := make(map[string]LimiterStats, len(l.semaphores))
	for endpoint, sem := range l.semaphores {
		stats[endpoint] = LimiterStats{
			Concurrency: cap(sem),
			InUse:       len(sem),
			Rate:        float64(l.limiters[endpoint].Limit()),
		}
	}
	return stats
}
