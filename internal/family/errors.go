// ABOUTME: Error types for the family service
// ABOUTME: Spouse conflicts, partial batch failures and invalid input

package family

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSpouseUnavailable is returned when the chosen spouse already has a partner.
	ErrSpouseUnavailable = errors.New("spouse_unavailable")

	// ErrPartialBatch is returned when some writes of a fan-out failed.
	ErrPartialBatch = errors.New("partial batch failure")

	// ErrInvalidInput is returned for input the validator cannot express.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersonExists is returned when a new person's id is already taken.
	ErrPersonExists = errors.New("person already exists")
)

// SpouseUnavailableError names the spouse and the partner they already have.
type SpouseUnavailableError struct {
	SpouseID        string
	CurrentSpouseID string
}

func (e *SpouseUnavailableError) Error() string {
	return fmt.Sprintf("spouse %q is already paired with %q", e.SpouseID, e.CurrentSpouseID)
}

func (e *SpouseUnavailableError) Unwrap() error {
	return ErrSpouseUnavailable
}

// Failure is one failed write of a fan-out.
type Failure struct {
	Op    string `json:"op"`
	ID    string `json:"id"`
	Error string `json:"error"`

	err error
}

// BatchError reports the failed writes of a fan-out. Writes not listed
// succeeded and were not rolled back.
type BatchError struct {
	Failures []Failure
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s %s: %s", f.Op, f.ID, f.Error))
	}
	return fmt.Sprintf("%d write(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes ErrPartialBatch and every underlying cause.
func (e *BatchError) Unwrap() []error {
	errs := []error{ErrPartialBatch}
	for _, f := range e.Failures {
		if f.err != nil {
			errs = append(errs, f.err)
		}
	}
	return errs
}
