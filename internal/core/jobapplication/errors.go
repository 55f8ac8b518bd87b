package jobapplication

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMustBeAccepted      = errors.New("jobapplication: must be accepted")
	ErrMissingApproval     = errors.New("jobapplication: no approval (PASS IAE) attached")
	ErrApprovalNotEligible = errors.New("jobapplication: approval does not allow employee record creation")
	ErrMissingCompany      = errors.New("jobapplication: no hiring company attached")
	ErrMissingConvention   = errors.New("jobapplication: hiring company has no convention")
	ErrMissingHiringDate   = errors.New("jobapplication: no hiring start date")
	ErrHiredBeforeFeature  = errors.New("jobapplication: hired before employee record availability date")
	ErrMissingProfile      = errors.New("jobapplication: job seeker has no profile")
	ErrIncompleteProfile   = errors.New("jobapplication: incomplete job seeker profile")
)

// IncompleteProfileError lists the profile fields missing for transmission.
// It matches ErrIncompleteProfile via errors.Is.
type IncompleteProfileError struct {
	Missing []string
}

func (e *IncompleteProfileError) Error() string {
	return fmt.Sprintf("jobapplication: incomplete job seeker profile: missing %s", strings.Join(e.Missing, ", "))
}

func (e *IncompleteProfileError) Is(target error) bool {
	return target == ErrIncompleteProfile
}
