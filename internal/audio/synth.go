package audio

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Synthesizer produces encoded speech audio for a piece of text. A
// (nil, nil) return means synthesis is unavailable and the caller should
// use the local fallback; it is not an error.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// OpenAISynthesizer speaks through the OpenAI speech endpoint, returning
// raw PCM at SynthSampleRate/SynthChannels.
type OpenAISynthesizer struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

// NewOpenAISynthesizer builds a synthesizer for the given API key. An
// empty key yields a synthesizer that always reports unavailable.
func NewOpenAISynthesizer(apiKey string) *OpenAISynthesizer {
	s := &OpenAISynthesizer{voice: openai.VoiceNova}
	if apiKey != "" {
		s.client = openai.NewClient(apiKey)
	}
	return s
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.client == nil {
		return nil, nil
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech payload: %w", err)
	}
	return data, nil
}
