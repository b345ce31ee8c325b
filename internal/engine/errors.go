package engine

import (
	"errors"
	"fmt"

	"github.com/pavelanni/mentor/internal/model"
)

// Sentinel errors returned by engine operations. Handlers map these to HTTP
// status codes with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCompleted = errors.New("already completed")
	ErrInvalidModality  = errors.New("invalid modality")
	ErrInvalidScore     = errors.New("score out of range")
	ErrGenerationFailed = errors.New("content generation failed")
)

// ParseModality converts a wire string into a Modality.
func ParseModality(s string) (model.Modality, error) {
	m := model.Modality(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidModality, s)
	}
	return m, nil
}
