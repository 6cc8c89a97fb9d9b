package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/okarvi/cinelens/internal/config"
	"github.com/okarvi/cinelens/internal/frames"
	"github.com/okarvi/cinelens/internal/gemini"
	"github.com/okarvi/cinelens/internal/pipeline"
	"github.com/okarvi/cinelens/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config.LoadEnvFile()
	cfg := config.FromEnv()

	var (
		framesDir = flag.StringP("frames", "f", "", "directory of sampled frame images")
		outPath   = flag.StringP("out", "o", "report.md", "markdown report output path")
		title     = flag.String("title", "Shot analysis", "report title")
		generate  = flag.BoolP("generate", "g", false, "regenerate a stylized image per shot")
		check     = flag.Bool("check", false, "validate credentials and exit")
		apiKey    = flag.String("key", "", "provider API key (overrides env and stored settings)")
		proxyBase = flag.String("proxy", "", "proxy base URL (overrides env and stored settings)")
		saveCreds = flag.Bool("save-credentials", false, "persist key/proxy to the settings store")
		debug     = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The settings store is optional: without a passphrase everything
	// comes from flags and env.
	var store storage.Store
	if passphrase := os.Getenv("CINELENS_PASSPHRASE"); passphrase != "" {
		dbPath := cfg.DBPath
		if dbPath == "" {
			dbPath = "cinelens.db"
		}
		s, err := storage.NewSQLiteStore(dbPath, storage.DeriveKey(passphrase))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open settings store")
		}
		defer s.Close()
		store = s

		if saved, err := s.GetCredentials(); err != nil {
			log.Warn().Err(err).Msg("failed to load stored credentials")
		} else if saved != nil {
			if cfg.APIKey == "" {
				cfg.APIKey = saved.APIKey
			}
			if cfg.ProxyBaseURL == "" {
				cfg.ProxyBaseURL = saved.ProxyBaseURL
			}
		}
	}

	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	if *proxyBase != "" {
		cfg.ProxyBaseURL = *proxyBase
	}

	if *saveCreds {
		if store == nil {
			log.Fatal().Msg("CINELENS_PASSPHRASE must be set to save credentials")
		}
		err := store.SaveCredentials(&storage.StoredCredentials{
			APIKey:       cfg.APIKey,
			ProxyBaseURL: cfg.ProxyBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to save credentials")
		}
		log.Info().Msg("credentials saved")
	}

	client := gemini.NewClient(gemini.ClientOpts{
		Credentials: gemini.Credentials{
			Key:     cfg.APIKey,
			BaseURL: cfg.ProxyBaseURL,
		},
		MaxConcurrency: cfg.MaxConcurrency,
		MinSpacing:     cfg.MinSpacing,
		MaxAttempts:    cfg.MaxAttempts,
		InitialDelay:   cfg.InitialDelay,
		AnalysisModel:  cfg.AnalysisModel,
		ImageModel:     cfg.ImageModel,
	})

	if *check {
		if err := client.CheckAccess(ctx); err != nil {
			log.Fatal().Err(err).Msg("credential check failed")
		}
		log.Info().Msg("credentials ok")
		return
	}

	if *framesDir == "" {
		log.Fatal().Msg("-frames is required (directory of sampled frame images)")
	}

	fs, err := frames.LoadDir(*framesDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load frames")
	}
	log.Info().Int("frames", len(fs)).Str("dir", *framesDir).Msg("frames loaded")

	analyzer := pipeline.NewCachedAnalyzer(client, store)
	shots := pipeline.Run(ctx, analyzer, client, fs, pipeline.Opts{
		GenerateImages: *generate,
	})

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create report file")
	}
	defer out.Close()

	if err := pipeline.WriteReport(out, *title, shots); err != nil {
		log.Fatal().Err(err).Msg("failed to write report")
	}

	failed := 0
	for _, shot := range shots {
		if shot.Err != nil {
			failed++
		}
	}
	log.Info().
		Int("shots", len(shots)).
		Int("failed", failed).
		Str("report", *outPath).
		Msg("report written")
}
