package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrValidation            = fmt.Errorf("validation error")
	ErrSenderInvalid         = fmt.Errorf("sender is invalid")
	ErrMembershipCheckFailed = fmt.Errorf("membership check failed")
	ErrStream                = fmt.Errorf("message stream failed")
	ErrSendFailed            = fmt.Errorf("message could not be sent")
	ErrOfflineBlocked        = fmt.Errorf("sending is disabled while offline")
	ErrSendForbidden         = fmt.Errorf("user is not allowed to send messages")
	ErrAccessDenied          = fmt.Errorf("user has no access to this club chat")
	ErrAlreadySending        = fmt.Errorf("a message is already being sent")
	ErrSessionClosed         = fmt.Errorf("chat session is closed")
	ErrReadStatePersist      = fmt.Errorf("read state could not be persisted")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
)
