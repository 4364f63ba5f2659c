package services

import (
	"fmt"
	"strings"
)

// ErrorCode identifies a domain failure surfaced to the caller.
type ErrorCode string

const (
	CodeUnknownMember         ErrorCode = "UNKNOWN_MEMBER"
	CodeInvalidSchedule       ErrorCode = "INVALID_SCHEDULE"
	CodeCreationRefused       ErrorCode = "CREATION_REFUSED"
	CodeSoloChallenge         ErrorCode = "SOLO_CHALLENGE_REJECTED"
	CodeMembershipNotFound    ErrorCode = "MEMBERSHIP_NOT_FOUND"
	CodeChallengeNotFound     ErrorCode = "CHALLENGE_NOT_FOUND"
	CodeImmutableMasterStatus ErrorCode = "IMMUTABLE_MASTER_STATUS"
)

// ChallengeError is a recoverable domain failure. It carries the offending
// identifiers so the boundary can render a user-facing message.
type ChallengeError struct {
	Code      ErrorCode
	Nicknames []string
}

func (e *ChallengeError) Error() string {
	if len(e.Nicknames) == 0 {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, strings.Join(e.Nicknames, ", "))
}

// Is lets errors.Is match against a bare code error.
func (e *ChallengeError) Is(target error) bool {
	t, ok := target.(*ChallengeError)
	return ok && t.Code == e.Code
}

func newChallengeError(code ErrorCode, nicknames ...string) *ChallengeError {
	return &ChallengeError{Code: code, Nicknames: nicknames}
}

var (
	ErrUnknownMember         = &ChallengeError{Code: CodeUnknownMember}
	ErrInvalidSchedule       = &ChallengeError{Code: CodeInvalidSchedule}
	ErrCreationRefused       = &ChallengeError{Code: CodeCreationRefused}
	ErrSoloChallenge         = &ChallengeError{Code: CodeSoloChallenge}
	ErrMembershipNotFound    = &ChallengeError{Code: CodeMembershipNotFound}
	ErrChallengeNotFound     = &ChallengeError{Code: CodeChallengeNotFound}
	ErrImmutableMasterStatus = &ChallengeError{Code: CodeImmutableMasterStatus}
)

// HTTPStatus maps a domain failure to the response status used by the
// fiber handlers. Unmapped errors are treated as internal.
func HTTPStatus(err error) int {
	ce, ok := err.(*ChallengeError)
	if !ok {
		return 500
	}
	switch ce.Code {
	case CodeChallengeNotFound, CodeMembershipNotFound:
		return 404
	case CodeImmutableMasterStatus:
		return 403
	case CodeUnknownMember, CodeInvalidSchedule, CodeCreationRefused, CodeSoloChallenge:
		return 400
	default:
		return 500
	}
}
