package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/audio"
	"github.com/aousabdo/meetingsage/internal/config"
	"github.com/aousabdo/meetingsage/internal/ports"
	"github.com/aousabdo/meetingsage/internal/providers/openai"
	"github.com/aousabdo/meetingsage/internal/store/file"
	"github.com/aousabdo/meetingsage/internal/store/mongo"
	"github.com/aousabdo/meetingsage/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Recorder  *usecase.Recorder
	Processor *usecase.Processor
	Store     ports.MeetingStore
	Audio     ports.AudioSink
	Config    config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(ctx context.Context, log zerolog.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	sink, err := audio.NewSink(cfg.Audio.TempDir, cfg.Audio.SampleRate, cfg.Audio.MinDuration, log)
	if err != nil {
		return Services{}, err
	}

	store, err := buildStore(ctx, cfg, log)
	if err != nil {
		return Services{}, err
	}

	client := openai.New(openai.Config{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.APIBaseURL,
		WhisperModel: cfg.OpenAI.WhisperModel,
		ChatModel:    cfg.OpenAI.ChatModel,
		MaxRetries:   cfg.OpenAI.MaxRetries,
	}, log)

	recorder := usecase.NewRecorder(usecase.Config{
		BatchSize:        cfg.Session.BatchSize,
		ConsolidateAfter: cfg.Session.ConsolidateAfter,
		IdleSleep:        cfg.Session.IdleSleep,
		StatsInterval:    cfg.Session.StatsInterval,
		StopTimeout:      cfg.Session.StopTimeout,
	}, audio.SoxrResampler{}, log)

	processor := usecase.NewProcessor(client, client, store, sink, log)

	return Services{
		Recorder:  recorder,
		Processor: processor,
		Store:     store,
		Audio:     sink,
		Config:    cfg,
	}, nil
}

// buildStore prefers MongoDB and falls back to the JSON-file store when no
// URI is configured or the database cannot be reached.
func buildStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (ports.MeetingStore, error) {
	if cfg.Mongo.URI != "" {
		store, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
		if err == nil {
			return store, nil
		}
		log.Warn().Err(err).Msg("mongodb unavailable, falling back to file store")
	} else {
		log.Info().Msg("no mongodb uri configured, using file store")
	}
	return file.New(cfg.Mongo.FallbackDir, log)
}
