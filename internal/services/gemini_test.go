package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"matchin-backend/internal/models"
)

func TestParseFlashcards(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []models.Flashcard
		wantErr  bool
	}{
		{
			name:     "plain array",
			raw:      `[{"question":"O que é HTTP?","answer":"Um protocolo."}]`,
			expected: []models.Flashcard{{Question: "O que é HTTP?", Answer: "Um protocolo."}},
		},
		{
			name:     "fenced json",
			raw:      "```json\n[{\"question\":\"Q\",\"answer\":\"A\"}]\n```",
			expected: []models.Flashcard{{Question: "Q", Answer: "A"}},
		},
		{
			name:     "array inside prose",
			raw:      `Aqui estão: [{"question":"Q1","answer":"A1"},{"question":"Q2","answer":"A2"}] Bons estudos!`,
			expected: []models.Flashcard{{Question: "Q1", Answer: "A1"}, {Question: "Q2", Answer: "A2"}},
		},
		{
			name:     "drops incomplete cards",
			raw:      `[{"question":"Q","answer":""},{"question":"  ","answer":"A"},{"question":"Q3","answer":"A3"}]`,
			expected: []models.Flashcard{{Question: "Q3", Answer: "A3"}},
		},
		{
			name:    "object instead of array",
			raw:     `{"question":"Q","answer":"A"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     "desculpe, não consegui",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseFlashcards(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.expected) {
				t.Fatalf("Expected %d cards, got %d", len(tc.expected), len(got))
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("card %d: expected %+v, got %+v", i, tc.expected[i], got[i])
				}
			}
		})
	}
}

func TestTruncateSource(t *testing.T) {
	long := strings.Repeat("é", MaxSourceChars+500)
	got := truncateSource(long, MaxSourceChars)
	if n := utf8.RuneCountInString(got); n != MaxSourceChars {
		t.Errorf("Expected %d characters, got %d", MaxSourceChars, n)
	}
	if !utf8.ValidString(got) {
		t.Error("truncated text is not valid UTF-8")
	}

	short := "texto curto"
	if truncateSource(short, MaxSourceChars) != short {
		t.Error("short text must be unchanged")
	}
}

func TestBuildFlashcardPrompt(t *testing.T) {
	prompt := buildFlashcardPrompt(models.QuizSettings{Count: 7, Difficulty: models.DifficultyHard}, "conteúdo do pdf")

	for _, want := range []string{"crie 7 cartões", "Difícil", "conteúdo do pdf", "Texto base:"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestGenerateWithoutAPIKeyFailsBeforeNetwork(t *testing.T) {
	g, err := NewFlashcardGenerator(context.Background(), "", "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer g.Close()

	_, err = g.Generate(context.Background(), "texto", models.DefaultQuizSettings())
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected GenerationError, got %v", err)
	}
	if genErr.Kind != GenerationMissingCredentials {
		t.Errorf("Expected missing_credentials, got %s", genErr.Kind)
	}
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Error("Expected error to wrap ErrMissingAPIKey")
	}
}

func TestFlashcardSchemaRequiresBothSides(t *testing.T) {
	schema := flashcardSchema()
	if schema.Items == nil {
		t.Fatal("Expected array item schema")
	}
	if len(schema.Items.Required) != 2 {
		t.Errorf("Expected 2 required fields, got %v", schema.Items.Required)
	}
	if _, ok := schema.Items.Properties["question"]; !ok {
		t.Error("Expected question property")
	}
	if _, ok := schema.Items.Properties["answer"]; !ok {
		t.Error("Expected answer property")
	}
}
