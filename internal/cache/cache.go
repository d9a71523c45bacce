package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Purge drops every entry.
	Purge()
	Size() int
}

// Stats counts cache activity since creation.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
	Entries   int   `json:"entries"`
}

// HitRatio is hits over lookups, or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// Managed is implemented by caches the Manager can clean and report on.
type Managed interface {
	CleanExpired() int
	Stats() Stats
}

// NamedStats pairs a registered cache name with its stats.
type NamedStats struct {
	Name string
	Stats
}

type registration struct {
	name  string
	cache Managed
}

// Manager periodically drops expired entries from the registered caches
// and reports their stats.
type Manager struct {
	caches []registration
	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds a cache under name. It must be called before Run.
func (m *Manager) Register(name string, c Managed) {
	m.caches = append(m.caches, registration{name: name, cache: c})
}

// Run cleans all registered caches every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := m.CleanAll(); cleaned > 0 {
				m.logger.Debug("Expired cache entries removed", "count", cleaned)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// CleanAll runs one cleanup pass and returns the number of entries removed.
func (m *Manager) CleanAll() int {
	total := 0
	for _, r := range m.caches {
		total += r.cache.CleanExpired()
	}
	return total
}

// Stats returns the stats of every cache in registration order.
func (m *Manager) Stats() []NamedStats {
	out := make([]NamedStats, 0, len(m.caches))
	for _, r := range m.caches {
		out = append(out, NamedStats{Name: r.name, Stats: r.cache.Stats()})
	}
	return out
}
