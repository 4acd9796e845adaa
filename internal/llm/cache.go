package llm

import (
	"context"
	"encoding/hex"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

// VisionCacheStore persists raw model output keyed by image digest.
// GetVisionCache returns "", nil on a miss.
type VisionCacheStore interface {
	GetVisionCache(imageHash string) (string, error)
	SetVisionCache(imageHash string, response string) error
}

// CachedEstimator wraps an Estimator with a persistent cache so that the
// same photo is only sent to the model once.
type CachedEstimator struct {
	inner Estimator
	store VisionCacheStore
}

// NewCachedEstimator creates a cached estimator.
func NewCachedEstimator(inner Estimator, store VisionCacheStore) *CachedEstimator {
	return &CachedEstimator{inner: inner, store: store}
}

func hashImage(imageData []byte) string {
	sum := blake2b.Sum256(imageData)
	return hex.EncodeToString(sum[:])
}

// EstimateNutrition implements the Estimator interface with caching. Only
// responses that parse into a valid estimate are cached.
func (c *CachedEstimator) EstimateNutrition(ctx context.Context, imageData []byte, mimeType string) (string, error) {
	hash := hashImage(imageData)

	if c.store != nil {
		cached, err := c.store.GetVisionCache(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check vision cache")
		} else if cached != "" {
			log.Debug().Str("hash", hash[:16]).Msg("vision cache hit")
			return cached, nil
		}
	}

	text, err := c.inner.EstimateNutrition(ctx, imageData, mimeType)
	if err != nil {
		return "", err
	}

	if c.store != nil {
		if _, perr := ParseVisualEstimate(text); perr != nil {
			log.Debug().Str("hash", hash[:16]).Msg("not caching malformed vision response")
		} else if err := c.store.SetVisionCache(hash, text); err != nil {
			log.Warn().Err(err).Msg("failed to cache vision result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached vision result")
		}
	}

	return text, nil
}
