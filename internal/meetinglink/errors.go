package meetinglink

import "github.com/hackgods/telehealth-scheduling/internal/apperror"

var (
	ErrPoolExhausted = apperror.Validation("no meeting link is available, please try again later")
	ErrLinkNotFound  = apperror.NotFound("meeting link not found")
	ErrLinkInUse     = apperror.Validation("meeting link is already in use")
	ErrLinkNotInUse  = apperror.Validation("meeting link is not in use")
)
