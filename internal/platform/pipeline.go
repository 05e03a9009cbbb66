package platform

import (
	"github.com/drewmudry/chatshorts-api/assets"
	"github.com/drewmudry/chatshorts-api/background"
	"github.com/drewmudry/chatshorts-api/composite"
	"github.com/drewmudry/chatshorts-api/config"
	"github.com/drewmudry/chatshorts-api/media"
	"github.com/drewmudry/chatshorts-api/pipeline"
	"github.com/drewmudry/chatshorts-api/snapshot"
	"github.com/drewmudry/chatshorts-api/voice"
	"github.com/rs/zerolog"
)

// Services are the long-lived collaborators built from configuration.
type Services struct {
	Assets   *assets.Registry
	Voices   *voice.Client
	Pipeline *pipeline.Pipeline
}

// NewServices loads the asset registry and wires the render pipeline.
func NewServices(cfg *config.Config, logger zerolog.Logger) (*Services, error) {
	registry, err := assets.LoadRegistry(cfg.Media.AssetsFile)
	if err != nil {
		return nil, err
	}

	voices := NewVoiceClient(cfg, logger)

	runner := media.Exec{}
	prober := media.NewFFprobe(cfg.Media.FFprobePath, runner)

	p := pipeline.New(pipeline.Deps{
		Assets:   registry,
		Voices:   voices,
		Renderer: snapshot.NewHTTPRenderer(cfg.Renderer.URL, cfg.Renderer.Timeout, logger),
		Prober:   prober,
		Fetcher:  media.NewDownloader(logger),
		Sampler:  background.NewSampler(),
		Encoder:  composite.NewFFmpegEncoder(cfg.Media.FFmpegPath, runner, logger),
		Post:     composite.NewPostProcessor(cfg.Media.FFmpegPath, runner, prober, logger),
	}, pipeline.Options{
		ScratchDir:    cfg.Media.ScratchDir,
		OutputDir:     cfg.Media.OutputDir,
		BackgroundDir: cfg.Media.BackgroundDir,
		WindowSize:    cfg.Renderer.WindowSize,
		Enhance:       cfg.Media.Enhance,
		SpeedUpFactor: cfg.Media.SpeedUpFactor,
	}, logger)

	return &Services{Assets: registry, Voices: voices, Pipeline: p}, nil
}

// NewVoiceClient builds the ElevenLabs client from configuration.
func NewVoiceClient(cfg *config.Config, logger zerolog.Logger) *voice.Client {
	return voice.NewClient(voice.Config{
		APIKey:  cfg.Voice.APIKey,
		BaseURL: cfg.Voice.BaseURL,
		ModelID: cfg.Voice.ModelID,
		Settings: voice.Settings{
			Stability:       cfg.Voice.Stability,
			SimilarityBoost: cfg.Voice.SimilarityBoost,
			Style:           cfg.Voice.Style,
		},
	}, logger)
}
