package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEstimator struct {
	response string
	err      error
	calls    int
}

func (f *fakeEstimator) EstimateNutrition(ctx context.Context, imageData []byte, mimeType string) (string, error) {
	f.calls++
	return f.response, f.err
}

type memoryVisionCache struct {
	entries map[string]string
	failGet bool
}

func (m *memoryVisionCache) GetVisionCache(hash string) (string, error) {
	if m.failGet {
		return "", errors.New("db locked")
	}
	return m.entries[hash], nil
}

func (m *memoryVisionCache) SetVisionCache(hash, response string) error {
	m.entries[hash] = response
	return nil
}

func TestCachedEstimator_CachesValidResponses(t *testing.T) {
	inner := &fakeEstimator{response: validEstimate}
	store := &memoryVisionCache{entries: map[string]string{}}
	c := NewCachedEstimator(inner, store)
	img := []byte("jpeg-bytes")

	first, err := c.EstimateNutrition(context.Background(), img, "image/jpeg")
	require.NoError(t, err)
	second, err := c.EstimateNutrition(context.Background(), img, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, validEstimate, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Contains(t, store.entries, hashImage(img))
}

func TestCachedEstimator_SkipsMalformedResponses(t *testing.T) {
	inner := &fakeEstimator{response: "sorry, no food here"}
	store := &memoryVisionCache{entries: map[string]string{}}
	c := NewCachedEstimator(inner, store)

	_, err := c.EstimateNutrition(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	_, err = c.EstimateNutrition(context.Background(), []byte("img"), "")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Empty(t, store.entries)
}

func TestCachedEstimator_PropagatesModelErrors(t *testing.T) {
	inner := &fakeEstimator{err: errors.New("quota exceeded")}
	c := NewCachedEstimator(inner, &memoryVisionCache{entries: map[string]string{}})

	_, err := c.EstimateNutrition(context.Background(), []byte("img"), "")
	assert.EqualError(t, err, "quota exceeded")
}

func TestCachedEstimator_StoreFailureFallsThrough(t *testing.T) {
	inner := &fakeEstimator{response: validEstimate}
	c := NewCachedEstimator(inner, &memoryVisionCache{entries: map[string]string{}, failGet: true})

	text, err := c.EstimateNutrition(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	assert.Equal(t, validEstimate, text)
	assert.Equal(t, 1, inner.calls)
}

func TestHashImage(t *testing.T) {
	assert.Len(t, hashImage([]byte("a")), 64)
	assert.NotEqual(t, hashImage([]byte("a")), hashImage([]byte("b")))
	assert.Equal(t, hashImage([]byte("a")), hashImage([]byte("a")))
}
