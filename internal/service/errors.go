package service

import "errors"

var (
	ErrInvalidTime       = errors.New("time must look like HH:MM")
	ErrInvalidDate       = errors.New("date must look like DD.MM, DD.MM.YYYY or YYYY-MM-DD")
	ErrTimeInPast        = errors.New("walk time must be in the future")
	ErrQuotaExceeded     = errors.New("daily proposal limit reached")
	ErrNotEditable       = errors.New("proposal can no longer be edited")
	ErrInvalidLeadTime   = errors.New("reminder lead time out of range")
	ErrInvalidVote       = errors.New("unknown vote kind")
	ErrCommentNotAllowed = errors.New("comments are only accepted from going or later voters")
	ErrNotFound          = errors.New("proposal no longer exists")
)

// IsValidation reports whether err should be shown to the user who caused
// it rather than treated as an internal failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidTime,
		ErrInvalidDate,
		ErrTimeInPast,
		ErrQuotaExceeded,
		ErrNotEditable,
		ErrInvalidLeadTime,
		ErrInvalidVote,
		ErrCommentNotAllowed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
