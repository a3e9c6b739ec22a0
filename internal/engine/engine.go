// Package engine adapts external speech-to-text backends behind one interface.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Aarkan1/vibe-writer/internal/config"
)

// ErrUnavailable indicates the backend could not be reached or is not configured.
var ErrUnavailable = errors.New("transcription engine unavailable")

// ErrTimeout indicates the backend did not answer within the configured deadline.
var ErrTimeout = errors.New("transcription timed out")

// Transcriber converts one finalized PCM segment into text.
//
// Implementations are safe for sequential reuse; the dispatcher guarantees at
// most one call in flight.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error)
	Ready(ctx context.Context) error
}

// New builds the backend selected by engine.backend.
func New(cfg config.EngineConfig) (Transcriber, error) {
	switch strings.ToLower(cfg.Backend) {
	case "openai":
		return NewOpenAI(cfg)
	case "local":
		return NewLocal(cfg), nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
}

// classify folds transport-level failures into the engine error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
