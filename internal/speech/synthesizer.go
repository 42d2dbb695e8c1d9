package speech

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"
)

// MaxChunkLen is the largest piece of text sent to a synthesizer at once.
// OpenAI TTS rejects input above 4096 characters.
const MaxChunkLen = 4000

// Synthesizer turns text into an audio stream.
type Synthesizer interface {
	// Synthesize starts synthesis of text spoken in lang (a BCP 47 tag such as
	// "pt-BR"). The stream must stop when ctx is cancelled.
	Synthesize(ctx context.Context, text, lang string) (io.ReadCloser, error)

	// Name returns the provider name
	Name() string
}

type fallbackSynthesizer struct {
	primary  Synthesizer
	fallback Synthesizer
}

// WithFallback tries primary first and uses fallback when primary fails to start.
func WithFallback(primary, fallback Synthesizer) Synthesizer {
	return &fallbackSynthesizer{primary: primary, fallback: fallback}
}

func (f *fallbackSynthesizer) Synthesize(ctx context.Context, text, lang string) (io.ReadCloser, error) {
	rc, err := f.primary.Synthesize(ctx, text, lang)
	if err == nil {
		return rc, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	log.Printf("Primary speech provider (%s) failed: %v. Falling back to %s", f.primary.Name(), err, f.fallback.Name())
	return f.fallback.Synthesize(ctx, text, lang)
}

func (f *fallbackSynthesizer) Name() string {
	return fmt.Sprintf("%s (fallback: %s)", f.primary.Name(), f.fallback.Name())
}

// SplitText cuts text into chunks of at most max runes, preferring sentence
// ends, then line breaks, then spaces. Blank chunks are dropped.
func SplitText(text string, max int) []string {
	var chunks []string
	rest := strings.TrimSpace(text)
	for rest != "" {
		if utf8.RuneCountInString(rest) <= max {
			chunks = append(chunks, rest)
			break
		}
		window := prefixRunes(rest, max)
		cut := lastBoundary(window)
		if cut <= 0 {
			cut = len(window)
		}
		chunk := strings.TrimSpace(rest[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = strings.TrimSpace(rest[cut:])
	}
	return chunks
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// lastBoundary returns the byte offset just after the best break in s, or 0.
func lastBoundary(s string) int {
	if i := strings.LastIndexAny(s, ".!?"); i > 0 {
		return i + 1
	}
	if i := strings.LastIndex(s, "\n"); i > 0 {
		return i + 1
	}
	if i := strings.LastIndex(s, " "); i > 0 {
		return i + 1
	}
	return 0
}
