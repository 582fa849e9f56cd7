package syncer

import (
	"errors"
	"fmt"

	"github.com/kalambet/wordsync/internal/notebook"
)

// ErrAddFailed matches any *AddFailedError.
var ErrAddFailed = errors.New("adding notes failed")

// WordFailure is one word whose note could not be created.
type WordFailure struct {
	Word notebook.Word
	Err  error
}

// AddFailedError aggregates the failures of one sync pass. Notes created for
// the other words in the pass remain.
type AddFailedError struct {
	Failures []WordFailure
	Total    int
}

func (e *AddFailedError) Error() string {
	msg := fmt.Sprintf("%s: %d of %d words", ErrAddFailed, len(e.Failures), e.Total)
	if len(e.Failures) > 0 {
		msg += fmt.Sprintf(" (first: %q: %v)", e.Failures[0].Word.Text, e.Failures[0].Err)
	}
	return msg
}

func (e *AddFailedError) Is(target error) bool {
	return target == ErrAddFailed
}

func (e *AddFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
