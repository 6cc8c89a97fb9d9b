package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog/log"

	"github.com/okarvi/cinelens/internal/gemini"
	"github.com/okarvi/cinelens/internal/storage"
)

// Analyzer is the analysis side of the provider client.
type Analyzer interface {
	Analyze(ctx context.Context, frame string) (*gemini.Analysis, error)
}

// ImageGenerator is the generation side of the provider client.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// CachedAnalyzer wraps an Analyzer with SQLite caching so re-running a
// report over the same frames costs nothing.
type CachedAnalyzer struct {
	inner Analyzer
	store storage.Store
}

// NewCachedAnalyzer creates a cached analyzer. A nil store disables
// caching.
func NewCachedAnalyzer(inner Analyzer, store storage.Store) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store}
}

func hashFrame(frame string) string {
	sum := sha256.Sum256([]byte(frame))
	return hex.EncodeToString(sum[:])
}

// Analyze implements Analyzer with caching. Cache errors are logged and
// treated as misses; only the provider call itself can fail the frame.
func (c *CachedAnalyzer) Analyze(ctx context.Context, frame string) (*gemini.Analysis, error) {
	hash := hashFrame(frame)

	if c.store != nil {
		cached, err := c.store.GetAnalysis(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check analysis cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:16]).Msg("analysis cache hit")
			analysis := cached.Analysis
			return &analysis, nil
		}
	}

	result, err := c.inner.Analyze(ctx, frame)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		if err := c.store.SaveAnalysis(hash, result); err != nil {
			log.Warn().Err(err).Msg("failed to cache analysis")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached analysis")
		}
	}

	return result, nil
}
