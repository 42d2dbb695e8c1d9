package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"google.golang.org/api/option"

	"matchin-backend/internal/models"
)

// MaxSourceChars bounds the text sent to the model to respect context limits.
const MaxSourceChars = 15000

const DefaultGeminiModel = "gemini-3-flash-preview"

var ErrMissingAPIKey = errors.New("API Key não configurada")

type FlashcardGenerator struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	breaker  *gobreaker.CircuitBreaker
	rateChan chan struct{} // Token bucket
}

// NewFlashcardGenerator builds a generator. An empty apiKey is accepted: every
// Generate call then fails with GenerationMissingCredentials without touching
// the network.
func NewFlashcardGenerator(ctx context.Context, apiKey, modelName string, concurrentReqs int) (*FlashcardGenerator, error) {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	g := &FlashcardGenerator{
		rateChan: rateChan,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "gemini",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("Circuit %s: %s -> %s", name, from, to)
			},
		}),
	}

	if apiKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = flashcardSchema()

	g.client = client
	g.model = model
	return g, nil
}

func (g *FlashcardGenerator) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// acquireRate blocks until a rate slot is available
func (g *FlashcardGenerator) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *FlashcardGenerator) releaseRate() {
	g.rateChan <- struct{}{}
}

// Generate asks Gemini for settings.Count question/answer pairs about text.
// A response that cannot be parsed yields an empty deck, not an error.
func (g *FlashcardGenerator) Generate(ctx context.Context, text string, settings models.QuizSettings) ([]models.Flashcard, error) {
	if g.model == nil {
		return nil, &GenerationError{Kind: GenerationMissingCredentials, Err: ErrMissingAPIKey}
	}

	if err := g.acquireRate(ctx); err != nil {
		return nil, &GenerationError{Kind: GenerationTransport, Err: err}
	}
	defer g.releaseRate()

	prompt := buildFlashcardPrompt(settings, truncateSource(text, MaxSourceChars))

	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.model.GenerateContent(ctx, genai.Text(prompt))
	})
	if err != nil {
		kind := GenerationProvider
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
			errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = GenerationTransport
		}
		return nil, &GenerationError{Kind: kind, Err: fmt.Errorf("Gemini API error: %w", err)}
	}
	resp := res.(*genai.GenerateContentResponse)

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	cards, err := parseFlashcards(extractText(resp))
	if err != nil {
		log.Printf("WARNING: failed to parse Gemini response: %v", err)
		return []models.Flashcard{}, nil
	}
	return cards, nil
}

// Helper functions

func flashcardSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question": {Type: genai.TypeString, Description: "A pergunta do cartão."},
				"answer":   {Type: genai.TypeString, Description: "A resposta correta."},
			},
			Required: []string{"question", "answer"},
		},
	}
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// truncateSource keeps the first max characters of text.
func truncateSource(text string, max int) string {
	n := 0
	for i := range text {
		if n == max {
			return text[:i]
		}
		n++
	}
	return text
}

func buildFlashcardPrompt(settings models.QuizSettings, source string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Com base no seguinte texto extraído de um PDF, crie %d cartões de estudo (flashcards).\n", settings.Count))
	b.WriteString(fmt.Sprintf("Nível de dificuldade esperado: %s.\n", settings.Difficulty.Label()))
	b.WriteString("O idioma deve ser o mesmo do texto fornecido (predominantemente Português).\n")
	b.WriteString("Certifique-se de que as perguntas sejam desafiadoras e as respostas concisas e explicativas.\n")
	b.WriteString("Responda apenas com um array JSON de objetos {\"question\": string, \"answer\": string}.\n")

	b.WriteString("\nTexto base:\n")
	b.WriteString(source)
	b.WriteString("\n")

	return b.String()
}

// parseFlashcards decodes the model output. Cards missing either side are dropped.
func parseFlashcards(rawText string) ([]models.Flashcard, error) {
	rawText = strings.TrimSpace(rawText)
	rawText = strings.TrimPrefix(rawText, "```json")
	rawText = strings.TrimPrefix(rawText, "```")
	rawText = strings.TrimSuffix(rawText, "```")
	rawText = strings.TrimSpace(rawText)

	var cards []models.Flashcard
	if err := json.Unmarshal([]byte(rawText), &cards); err != nil {
		// Try to extract JSON array
		start := strings.Index(rawText, "[")
		end := strings.LastIndex(rawText, "]")
		if start < 0 || end <= start {
			return nil, err
		}
		cards = nil
		if err := json.Unmarshal([]byte(rawText[start:end+1]), &cards); err != nil {
			return nil, err
		}
	}

	valid := make([]models.Flashcard, 0, len(cards))
	for _, c := range cards {
		c.Question = strings.TrimSpace(c.Question)
		c.Answer = strings.TrimSpace(c.Answer)
		if c.Question == "" || c.Answer == "" {
			continue
		}
		valid = append(valid, c)
	}
	return valid, nil
}
