// Package pipeline drives frames through analysis and optional image
// regeneration and collects the per-shot results.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/okarvi/cinelens/internal/frames"
	"github.com/okarvi/cinelens/internal/gemini"
)

// Shot is one sampled frame plus everything derived from it. Err is set
// when the frame failed; one shot's failure never aborts the others.
type Shot struct {
	ID        string
	Index     int
	FramePath string

	Analysis       *gemini.Analysis
	GeneratedImage string // data URI, empty when generation is off or failed
	Err            error
}

// Opts configures one pipeline run.
type Opts struct {
	// GenerateImages regenerates a stylized frame from each analysis
	// prompt.
	GenerateImages bool
}

// Run analyzes every frame and returns shots in frame order. The provider
// client bounds actual network concurrency, so shots are launched
// eagerly.
func Run(ctx context.Context, analyzer Analyzer, generator ImageGenerator, fs []*frames.Frame, opts Opts) []*Shot {
	shots := make([]*Shot, len(fs))
	g, ctx := errgroup.WithContext(ctx)

	for i, frame := range fs {
		shot := &Shot{
			ID:        uuid.NewString(),
			Index:     i,
			FramePath: frame.Path,
		}
		shots[i] = shot

		g.Go(func() error {
			analysis, err := analyzer.Analyze(ctx, frame.DataURI)
			if err != nil {
				shot.Err = err
				return nil
			}
			shot.Analysis = analysis
			log.Info().Int("shot", shot.Index).Str("shotSize", analysis.ShotSize).Msg("frame analyzed")

			if opts.GenerateImages && generator != nil {
				image, err := generator.GenerateImage(ctx, analysis.AIPrompt)
				if err != nil {
					// Analysis stands on its own; a failed regeneration
					// degrades the shot instead of failing it.
					log.Warn().Int("shot", shot.Index).Err(err).Msg("image regeneration failed")
					return nil
				}
				shot.GeneratedImage = image
			}
			return nil
		})
	}

	_ = g.Wait()
	return shots
}
