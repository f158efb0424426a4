package llm

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrKeysExhausted is returned once every configured key hit its daily quota.
var ErrKeysExhausted = errors.New("all api keys exhausted their daily quota")

// KeyRing hands out API keys in order and moves past keys that hit their daily
// quota. It also counts requests per key per hour and warns at a threshold.
type KeyRing struct {
	mu        sync.Mutex
	keys      []string
	current   int
	usage     map[usageKey]int
	threshold int
	now       func() time.Time
	logger    *slog.Logger
}

type usageKey struct {
	hour  string
	index int
}

// NewKeyRing builds a ring over keys; threshold <= 0 disables usage warnings.
func NewKeyRing(keys []string, threshold int, logger *slog.Logger) *KeyRing {
	return &KeyRing{
		keys:      append([]string(nil), keys...),
		usage:     map[usageKey]int{},
		threshold: threshold,
		now:       time.Now,
		logger:    logger,
	}
}

// Current returns the active key and its position.
func (k *KeyRing) Current() (string, int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.current >= len(k.keys) {
		return "", k.current, ErrKeysExhausted
	}
	return k.keys[k.current], k.current, nil
}

// Track counts one request made with key index in the current hour.
func (k *KeyRing) Track(index int) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	hour := k.now().Format("2006-01-02-15")
	for old := range k.usage {
		if old.hour != hour {
			delete(k.usage, old)
		}
	}
	uk := usageKey{hour: hour, index: index}
	k.usage[uk]++
	count := k.usage[uk]
	if k.threshold > 0 && count >= k.threshold && k.logger != nil {
		k.logger.Warn("api key usage above threshold", "key", index+1, "requests", count, "threshold", k.threshold)
	}
	return count
}

// Exhaust marks key index as out of daily quota and rotates to the next key.
// Stale indexes are ignored. It reports whether a usable key remains.
func (k *KeyRing) Exhaust(index int) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if index == k.current && k.current < len(k.keys) {
		k.current++
		if k.logger != nil {
			k.logger.Warn("api key reached daily quota", "key", index+1, "remaining", len(k.keys)-k.current)
		}
	}
	return k.current < len(k.keys)
}

// Usage reports request counts per key for the current hour.
func (k *KeyRing) Usage() map[int]int {
	k.mu.Lock()
	defer k.mu.Unlock()

	hour := k.now().Format("2006-01-02-15")
	stats := map[int]int{}
	for uk, count := range k.usage {
		if uk.hour == hour {
			stats[uk.index] = count
		}
	}
	return stats
}
