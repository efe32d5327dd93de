package scheduling

import (
	"errors"

	"schedula/reservations/internal/domain"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// RejectionError is a business-rule refusal of a reservation proposal. The
// message is meant to be shown to the requesting user as is.
type RejectionError struct {
	Reason string
	msg    string
}

func (e *RejectionError) Error() string {
	return e.msg
}

var (
	ErrLeadTimeViolation = &RejectionError{
		Reason: "lead_time",
		msg:    "The reservation must be at least 24 hours out.",
	}
	ErrOverlapConflict = &RejectionError{
		Reason: "overlap",
		msg:    "The selected time overlaps with an existing reservation.",
	}
)

var (
	ErrInvalidTransition = domain.ErrInvalidTransition
	ErrNotPermitted      = errors.New("not permitted to resolve this reservation")
)
