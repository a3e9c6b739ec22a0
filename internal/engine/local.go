package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Aarkan1/vibe-writer/internal/audio"
	"github.com/Aarkan1/vibe-writer/internal/config"
)

const transcriptionsPath = "/v1/audio/transcriptions"

// Local transcribes segments through a faster-whisper server exposing the
// OpenAI-compatible transcription endpoint.
type Local struct {
	baseURL    string
	healthPath string
	model      string
	http       *http.Client
}

// NewLocal builds the local-server backend from engine.local_url.
func NewLocal(cfg config.EngineConfig) *Local {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Local{
		baseURL:    strings.TrimRight(cfg.LocalURL, "/"),
		healthPath: cfg.LocalHealthPath,
		model:      cfg.Model,
		http:       &http.Client{Timeout: timeout},
	}
}

func (l *Local) Name() string {
	return "local"
}

// Ready probes the server's health endpoint.
func (l *Local) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+l.healthPath, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Transcribe uploads the segment as a multipart WAV and parses the JSON reply.
func (l *Local) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error) {
	wav := audio.EncodeWAV(pcm, sampleRate, 1)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if l.model != "" {
		if err := writer.WriteField("model", l.model); err != nil {
			return "", fmt.Errorf("write model field: %w", err)
		}
	}
	if language != "" && language != "auto" {
		if err := writer.WriteField("language", language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("write response_format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+transcriptionsPath, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := l.http.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: server returned %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}
