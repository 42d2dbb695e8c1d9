package services

import "fmt"

// ExtractionError means the PDF could not be read. The cause is opaque to users.
type ExtractionError struct {
	Name string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %q: %v", e.Name, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type GenerationErrorKind string

const (
	GenerationMissingCredentials GenerationErrorKind = "missing_credentials"
	GenerationTransport          GenerationErrorKind = "transport"
	GenerationProvider           GenerationErrorKind = "provider"
)

// GenerationError means no deck could be produced.
type GenerationError struct {
	Kind GenerationErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("flashcard generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
