// Package collect holds the factor collectors: one acquisition procedure per
// factor kind, each producing a typed factor value or failing.
//
// Collectors never substitute defaults. A failure is either ErrInputInvalid
// (the value the user supplied fails local validation, re-prompt the same
// field) or ErrAcquisitionFailed (the acquisition machinery itself broke,
// e.g. camera permission denied or a network error while sending a code).
package collect

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
)

var (
	ErrInputInvalid      = errors.New("collect: input invalid")
	ErrAcquisitionFailed = errors.New("collect: acquisition failed")
)

// Collector acquires one verification factor. Collect blocks until the
// factor is produced, the acquisition fails, or ctx is canceled.
type Collector interface {
	Kind() domain.FactorKind
	Collect(ctx context.Context) (domain.VerificationFactor, error)
}

// PromptFunc is implemented by the presentation layer: it asks the user for
// literal text input and resumes the collector when the user answers or
// dismisses.
type PromptFunc func(ctx context.Context) (string, error)

// validDigits reports whether s is exactly n ASCII digits.
func validDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
