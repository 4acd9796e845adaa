package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// PruneInterval is how often to prune old vision responses.
	PruneInterval = 24 * time.Hour

	// VisionCacheMaxAge is how long to keep vision responses before pruning.
	VisionCacheMaxAge = 30 * 24 * time.Hour // 30 days
)

// VisionCachePruner deletes cached vision responses older than a given age.
type VisionCachePruner interface {
	PruneVisionCache(olderThan time.Duration) (int64, error)
}

// Service runs periodic housekeeping on the store. The nutrition cache is
// never pruned; only raw vision responses expire.
type Service struct {
	store    VisionCachePruner
	interval time.Duration
	maxAge   time.Duration
}

// NewService creates a maintenance service with the default schedule.
func NewService(store VisionCachePruner) *Service {
	return &Service{
		store:    store,
		interval: PruneInterval,
		maxAge:   VisionCacheMaxAge,
	}
}

// Run prunes once at startup and then on every interval. It blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Dur("maxAge", s.maxAge).Msg("starting maintenance service")

	s.pruneVisionCache()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("maintenance service stopped")
			return
		case <-ticker.C:
			s.pruneVisionCache()
		}
	}
}

func (s *Service) pruneVisionCache() {
	removed, err := s.store.PruneVisionCache(s.maxAge)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune vision cache")
		return
	}
	if removed > 0 {
		log.Info().Int64("removed", removed).Msg("pruned old vision cache entries")
	}
}
