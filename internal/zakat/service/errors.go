package service

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition: the operation is not valid from the record's
	// current status.  The request must change before a retry can succeed.
	ErrIllegalTransition = errors.New("operation not valid in current status")

	// ErrValidation marks user-correctable input problems.  Specific
	// validation errors wrap it so callers can match either the broad
	// class or the exact cause.
	ErrValidation = errors.New("validation failed")

	ErrEmptyAssetSelection = fmt.Errorf("%w: at least one asset must be selected", ErrValidation)
	ErrNegativeWealth      = fmt.Errorf("%w: computed wealth cannot be negative", ErrValidation)
	ErrReasonTooShort      = fmt.Errorf("%w: reason must be at least 10 characters", ErrValidation)
	ErrHawlNotStarted      = fmt.Errorf("%w: hawl has not started for this record", ErrValidation)

	// ErrHawlIncomplete: finalize was called before day 354 without the
	// explicit early-override acknowledgement.
	ErrHawlIncomplete = fmt.Errorf("%w: hawl is not complete and no early override was given", ErrIllegalTransition)
)
