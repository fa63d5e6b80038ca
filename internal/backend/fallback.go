package backend

import (
	"context"

	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// FallbackTranscriber tries Primary and, when it fails with an error another
// provider might not hit (missing endpoint, refused credentials, transport
// failure), retries with Secondary.
type FallbackTranscriber struct {
	Primary   voice.Transcriber
	Secondary voice.Transcriber
	logger    *logging.Logger
}

// NewFallbackTranscriber chains two transcribers. A nil secondary makes it
// a pass-through.
func NewFallbackTranscriber(primary, secondary voice.Transcriber) *FallbackTranscriber {
	return &FallbackTranscriber{
		Primary:   primary,
		Secondary: secondary,
		logger:    logging.New("transcribe-fallback"),
	}
}

// Transcribe implements voice.Transcriber
func (f *FallbackTranscriber) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	text, err := f.Primary.Transcribe(ctx, audio, language)
	if err == nil || f.Secondary == nil || ctx.Err() != nil || !retryable(err) {
		return text, err
	}
	f.logger.Warn("Primary transcription failed, using fallback", "error", err)
	return f.Secondary.Transcribe(ctx, audio, language)
}
