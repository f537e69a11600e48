package llmrouter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/meetinglens/transcriptd/internal/cache"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/metrics"
	"github.com/meetinglens/transcriptd/internal/resilience"
	"github.com/meetinglens/transcriptd/internal/telemetry"
)

// breakerThreshold/breakerMinAttempts/breakerWindow/breakerReset tune the
// per-provider circuit breaker so a provider that is failing hard gets
// skipped for a cooldown instead of being retried on every Chat call,
// §4.9's "failed-over default stays failed-over until health recovers".
const (
	breakerThreshold   = 3
	breakerMinAttempts = 5
	breakerWindow      = 60 * time.Second
	breakerReset       = 30 * time.Second
)

// DefaultHealthInterval is §4.9's fixed health-check cadence.
const DefaultHealthInterval = 30 * time.Second

// DefaultCancelGrace bounds how long an aborted in-flight call is given
// to unwind, §4.9/§5.
const DefaultCancelGrace = 2 * time.Second

// registration pairs a Provider with its configured priority and a
// per-provider circuit breaker that trips after repeated technical
// failures within a sliding window.
type registration struct {
	provider Provider
	priority Priority
	breaker  *resilience.CircuitBreaker
}

// Router holds the registered providers and the hot-reloadable default,
// §4.9. Health check results are cached (in-process or Redis-backed via
// internal/cache) so C8 and UI adapters can read a status summary
// without re-probing on every call.
type Router struct {
	mu        sync.RWMutex
	providers map[string]registration
	defaultID string

	healthCache cache.Cache
	interval    time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Router. healthCache may be a RedisCache (shared
// across processes) or a memory cache; both satisfy cache.Cache.
func New(healthCache cache.Cache) *Router {
	if healthCache == nil {
		healthCache = cache.NewMemoryCache(time.Minute)
	}
	return &Router{
		providers:   make(map[string]registration),
		healthCache: healthCache,
		interval:    DefaultHealthInterval,
		stopCh:      make(chan struct{}),
	}
}

// Register adds or replaces a provider at the given priority. The first
// provider registered becomes the default if none is set.
func (r *Router) Register(p Provider, priority Priority) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = registration{
		provider: p,
		priority: priority,
		breaker:  resilience.NewCircuitBreaker(p.Name(), breakerThreshold, breakerMinAttempts, breakerWindow, breakerReset),
	}
	if r.defaultID == "" {
		r.defaultID = p.Name()
	}
}

// SetDefault hot-swaps the default provider. An in-flight call started
// against the previous default is unaffected, §4.9.
func (r *Router) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("llmrouter: unknown provider %q", name)
	}
	r.defaultID = name
	return nil
}

// orderedFallbacks returns every registered provider ordered by
// priority, starting from the current default.
func (r *Router) orderedFallbacks() []registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, hasDefault := r.providers[r.defaultID]
	var rest []registration
	for name, reg := range r.providers {
		if name != r.defaultID {
			rest = append(rest, reg)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].priority < rest[j].priority })

	out := make([]registration, 0, len(r.providers))
	if hasDefault {
		out = append(out, def)
	}
	return append(out, rest...)
}

// Chat tries the default provider, failing over to the next priority on
// a transient ErrorKind, §4.9. InvalidRequest errors surface
// immediately without fail-over.
func (r *Router) Chat(ctx context.Context, messages []Message, params ChatParams) (ChatResult, error) {
	ctx, span := telemetry.Tracer("llmrouter").Start(ctx, "llmrouter.Chat")
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lastErr error
	for _, reg := range r.orderedFallbacks() {
		if !reg.breaker.AllowRequest() {
			log.L().Debug().Str("component", "llmrouter").Str("provider", reg.provider.Name()).Msg("circuit open, skipping provider")
			continue
		}
		reg.breaker.RecordAttempt()

		start := time.Now()
		result, err := reg.provider.Chat(ctx, messages, params)
		latencyMS := time.Since(start).Milliseconds()
		if err == nil {
			reg.breaker.RecordSuccess()
			span.SetAttributes(telemetry.LLMAttributes(reg.provider.Name(), result.Model, latencyMS)...)
			return result, nil
		}
		span.SetAttributes(telemetry.LLMAttributes(reg.provider.Name(), "", latencyMS)...)
		lastErr = err

		var pe *ProviderError
		if asProviderError(err, &pe) && !pe.Kind.IsTransient() {
			metrics.LLMProviderErrors.WithLabelValues(reg.provider.Name(), "non_transient").Inc()
			return ChatResult{}, err
		}
		reg.breaker.RecordTechnicalFailure()
		metrics.LLMProviderErrors.WithLabelValues(reg.provider.Name(), "transient").Inc()
		log.L().Warn().Str("component", "llmrouter").Str("provider", reg.provider.Name()).Err(err).Msg("provider failed, trying next priority")
	}
	if lastErr == nil {
		return ChatResult{}, ErrNoProvidersAvailable
	}
	return ChatResult{}, fmt.Errorf("llmrouter: all providers failed: %w", lastErr)
}

// ChatSimple is a convenience wrapper for a single-string prompt.
func (r *Router) ChatSimple(ctx context.Context, prompt string) (string, error) {
	res, err := r.Chat(ctx, []Message{{Role: "user", Content: prompt}}, ChatParams{})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

func asProviderError(err error, target **ProviderError) bool {
	for err != nil {
		if pe, ok := err.(*ProviderError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}

// StatusSummary is what C8 and UI adapters consume, §4.9.
type StatusSummary struct {
	Default  string
	Statuses map[string]HealthStatus
}

// Status returns the most recently cached health status per provider.
func (r *Router) Status() StatusSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := StatusSummary{Default: r.defaultID, Statuses: make(map[string]HealthStatus, len(r.providers))}
	for name := range r.providers {
		if v, ok := r.healthCache.Get("llm_health:" + name); ok {
			if hs, ok := v.(HealthStatus); ok {
				out.Statuses[name] = hs
			}
		}
	}
	return out
}

// RunHealthChecks probes every provider once and caches results. Call
// on a fixed interval (DefaultHealthInterval) and on demand, §4.9.
func (r *Router) RunHealthChecks(ctx context.Context) {
	r.mu.RLock()
	regs := make([]registration, 0, len(r.providers))
	for _, reg := range r.providers {
		regs = append(regs, reg)
	}
	r.mu.RUnlock()

	for _, reg := range regs {
		hs, err := reg.provider.Health(ctx)
		if err != nil {
			hs = HealthStatus{Healthy: false, Detail: err.Error()}
		}
		r.healthCache.Set("llm_health:"+reg.provider.Name(), hs, r.interval*2)
	}
}

// StartHealthLoop runs RunHealthChecks on DefaultHealthInterval until
// ctx is done or Stop is called.
func (r *Router) StartHealthLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.RunHealthChecks(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunHealthChecks(ctx)
		}
	}
}

// Stop ends a running health loop.
func (r *Router) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}
