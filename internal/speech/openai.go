package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

type OpenAIConfig struct {
	APIKey string
	Model  string  // "tts-1", "tts-1-hd", or "gpt-4o-mini-tts"
	Voice  string  // "alloy", "coral", "nova", "sage", "shimmer", ...
	Speed  float64 // 0.25 to 4.0
}

func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model: "gpt-4o-mini-tts",
		Voice: "nova",
		Speed: 1.0,
	}
}

// OpenAISynthesizer streams mp3 audio from the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client  *openai.Client
	config  OpenAIConfig
	breaker *gobreaker.CircuitBreaker
}

func NewOpenAISynthesizer(config OpenAIConfig) (*OpenAISynthesizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	defaults := DefaultOpenAIConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Voice == "" {
		config.Voice = defaults.Voice
	}
	if config.Speed == 0 {
		config.Speed = defaults.Speed
	}

	return &OpenAISynthesizer{
		client: openai.NewClient(config.APIKey),
		config: config,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openai-tts",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("Circuit %s: %s -> %s", name, from, to)
			},
		}),
	}, nil
}

func (s *OpenAISynthesizer) Name() string {
	return "openai"
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, lang string) (io.ReadCloser, error) {
	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.config.Voice),
		Speed:          s.config.Speed,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}
	// Only the gpt-4o family accepts voice instructions.
	if strings.HasPrefix(s.config.Model, "gpt-4o") {
		req.Instructions = voiceInstruction(lang)
	}

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.CreateSpeech(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI TTS API error: %w", err)
	}

	resp := res.(openai.RawResponse)
	return resp, nil
}

func voiceInstruction(lang string) string {
	switch strings.ToLower(lang) {
	case "pt-br":
		return "Leia o texto em português do Brasil, com pronúncia brasileira natural, de forma clara e num ritmo adequado para estudo."
	case "":
		return "Read the text clearly at a pace suitable for studying."
	default:
		return fmt.Sprintf("Read the text in the language identified by %q, clearly and at a pace suitable for studying.", lang)
	}
}
