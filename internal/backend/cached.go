package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/pkg/core/cache"
	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

// CachingSynthesizer keeps synthesized audio for repeated phrases such as
// confirmations and queue summaries
type CachingSynthesizer struct {
	next   voice.Synthesizer
	cache  *cache.Cache
	logger *logging.Logger
}

var _ voice.Synthesizer = (*CachingSynthesizer)(nil)

// NewCachingSynthesizer wraps next with c
func NewCachingSynthesizer(next voice.Synthesizer, c *cache.Cache) *CachingSynthesizer {
	return &CachingSynthesizer{
		next:   next,
		cache:  c,
		logger: logging.New("speech-cache"),
	}
}

// Synthesize returns cached audio or asks next and stores the result
func (s *CachingSynthesizer) Synthesize(ctx context.Context, req voice.SpeechRequest) ([]byte, error) {
	key := SpeechKey(req)
	if audio, ok := s.cache.Get(key); ok {
		s.logger.Debug("Speech cache hit", "chars", len(req.Text))
		return audio, nil
	}

	audio, err := s.next.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, audio)
	return audio, nil
}

// SpeechKey identifies a synthesis request by its text and voice settings
func SpeechKey(req voice.SpeechRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%.2f\x00%s\x00%s", req.Voice, req.Speed, req.Style, req.Text)
	return "tts:" + hex.EncodeToString(h.Sum(nil))
}
