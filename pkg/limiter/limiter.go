// Package limiter enforces token rate, daily budget, and concurrency limits
// for AI model calls with token-bucket accounting.
package limiter

import (
	"fmt"
	"sync"
	"time"

	"vozlocal/pkg/config"
)

// Sentinel errors returned when a reservation cannot be granted.
var (
	ErrRateLimit      = fmt.Errorf("rate limit exceeded")
	ErrBudgetExceeded = fmt.Errorf("daily budget exceeded")
	ErrConcurrency    = fmt.Errorf("concurrency limit exceeded")
)

// Limiter tracks limits across all configured AI models.
type Limiter struct {
	mu         sync.RWMutex
	models     map[string]*modelLimiter
	resetTimer *time.Timer
}

type modelLimiter struct {
	mu sync.Mutex

	name           string
	maxTPM         int
	dailyBudgetUSD float64
	maxConcurrent  int

	currentTokens int
	spentUSD      float64
	inFlight      int
	lastRefill    time.Time
}

// New creates a limiter from the configured model limits and schedules the
// daily budget reset at local midnight.
func New(limits []config.ModelLimit) *Limiter {
	l := &Limiter{models: make(map[string]*modelLimiter)}
	for i := range limits {
		ml := &limits[i]
		l.models[ml.Name] = &modelLimiter{
			name:           ml.Name,
			maxTPM:         ml.MaxTPM,
			dailyBudgetUSD: ml.DailyBudgetUSD,
			maxConcurrent:  ml.MaxConcurrent,
			currentTokens:  ml.MaxTPM,
			lastRefill:     time.Now(),
		}
	}
	l.scheduleDailyReset()
	return l
}

// Configured reports whether limits exist for the model. Unconfigured
// models are unlimited.
func (l *Limiter) Configured(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.models[name]
	return ok
}

func (l *Limiter) model(name string) (*modelLimiter, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ml, ok := l.models[name]
	if !ok {
		return nil, fmt.Errorf("model %s not configured", name)
	}
	return ml, nil
}

// Reserve takes tokens from the model's per-minute bucket.
func (l *Limiter) Reserve(model string, tokens int) error {
	ml, err := l.model(model)
	if err != nil {
		return err
	}
	return ml.reserve(tokens)
}

// ReserveBudget charges estimated cost against the model's daily budget.
func (l *Limiter) ReserveBudget(model string, costUSD float64) error {
	ml, err := l.model(model)
	if err != nil {
		return err
	}
	return ml.reserveBudget(costUSD)
}

// Acquire takes a concurrency slot; callers must Release it.
func (l *Limiter) Acquire(model string) error {
	ml, err := l.model(model)
	if err != nil {
		return err
	}
	return ml.acquire()
}

// Release returns a concurrency slot.
func (l *Limiter) Release(model string) error {
	ml, err := l.model(model)
	if err != nil {
		return err
	}
	return ml.release()
}

// Status returns remaining tokens, spent budget, and in-flight calls.
func (l *Limiter) Status(model string) (tokens int, spentUSD float64, inFlight int, err error) {
	ml, err := l.model(model)
	if err != nil {
		return 0, 0, 0, err
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.refill()
	return ml.currentTokens, ml.spentUSD, ml.inFlight, nil
}

// ResetDaily zeroes budgets and refills buckets for all models.
func (l *Limiter) ResetDaily() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ml := range l.models {
		ml.resetDaily()
	}
}

// Close stops the daily reset timer.
func (l *Limiter) Close() {
	if l.resetTimer != nil {
		l.resetTimer.Stop()
	}
}

func (l *Limiter) scheduleDailyReset() {
	now := time.Now()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	l.resetTimer = time.AfterFunc(time.Until(nextMidnight), func() {
		l.ResetDaily()
		l.scheduleDailyReset()
	})
}

func (ml *modelLimiter) reserve(tokens int) error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.refill()
	if ml.currentTokens < tokens {
		return ErrRateLimit
	}
	ml.currentTokens -= tokens
	return nil
}

func (ml *modelLimiter) reserveBudget(costUSD float64) error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.dailyBudgetUSD > 0 && ml.spentUSD+costUSD > ml.dailyBudgetUSD {
		return ErrBudgetExceeded
	}
	ml.spentUSD += costUSD
	return nil
}

func (ml *modelLimiter) acquire() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.maxConcurrent > 0 && ml.inFlight >= ml.maxConcurrent {
		return ErrConcurrency
	}
	ml.inFlight++
	return nil
}

func (ml *modelLimiter) release() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.inFlight <= 0 {
		return fmt.Errorf("no in-flight calls to release for model %s", ml.name)
	}
	ml.inFlight--
	return nil
}

func (ml *modelLimiter) resetDaily() {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.spentUSD = 0
	ml.currentTokens = ml.maxTPM
	ml.lastRefill = time.Now()
}

func (ml *modelLimiter) refill() {
	elapsed := time.Since(ml.lastRefill)
	if elapsed < time.Minute {
		return
	}

	minutes := int(elapsed / time.Minute)
	ml.currentTokens += minutes * ml.maxTPM
	if ml.currentTokens > ml.maxTPM {
		ml.currentTokens = ml.maxTPM
	}
	ml.lastRefill = ml.lastRefill.Add(time.Duration(minutes) * time.Minute)
}
