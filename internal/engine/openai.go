package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Aarkan1/vibe-writer/internal/audio"
	"github.com/Aarkan1/vibe-writer/internal/config"
)

// OpenAI transcribes segments through the hosted Whisper API.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI builds the API backend; the key is read from engine.api_key_env.
func NewOpenAI(cfg config.EngineConfig) (*OpenAI, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: environment variable %s is not set", ErrUnavailable, cfg.APIKeyEnv)
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}, nil
}

func (o *OpenAI) Name() string {
	return "openai"
}

// Ready reports whether the backend is usable; the hosted API needs no probe.
func (o *OpenAI) Ready(_ context.Context) error {
	return nil
}

// Transcribe uploads the segment as WAV and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	wav := audio.EncodeWAV(pcm, sampleRate, 1)

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
	}
	// The API rejects "auto"; an absent field means auto-detect.
	if language != "" && language != "auto" {
		params.Language = openai.String(language)
	}

	transcription, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(transcription.Text), nil
}
