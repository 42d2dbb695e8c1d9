package session

import "errors"

var (
	ErrUnsupportedMedia   = errors.New("session: only PDF files are accepted")
	ErrExtractionInFlight = errors.New("session: a document is already being processed")
	ErrGenerationInFlight = errors.New("session: flashcards are already being generated")
	ErrNoDocument         = errors.New("session: no document loaded")
	ErrNoDeck             = errors.New("session: no flashcards generated yet")
	ErrEmptyDeck          = errors.New("session: generation returned no flashcards")
	ErrStaleResult        = errors.New("session: result discarded, session state changed while it was pending")
	ErrNoReview           = errors.New("session: flashcard viewer is not open")
	ErrClosed             = errors.New("session: closed")
)

// User-facing notification codes and messages.
const (
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeEmptyDeck        = "EMPTY_DECK"
	CodeSpeechFailed     = "SPEECH_FAILED"

	msgExtractionFailed = "Erro ao ler o PDF. Tente novamente."
	msgGenerationFailed = "Erro ao gerar cartões. Verifique sua conexão ou API Key."
	msgEmptyDeck        = "Nenhum cartão foi gerado a partir deste texto. Tente novamente."
	msgSpeechFailed     = "Não foi possível ler o texto em voz alta."
)
