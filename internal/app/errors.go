package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrChatNotFound = errors.New("chat not found")
	ErrMessageEmpty = errors.New("message content is empty")

	ErrStorageUnavailable = errors.New("upload storage unavailable")
	ErrUploadIncomplete   = errors.New("upload did not complete")
	ErrInvalidFileType    = errors.New("only pdf files are allowed")

	ErrAnswerEnqueue = errors.New("answer job enqueue failed")

	// ErrAnswerFailed is the single outcome of any failed answering job. The
	// underlying cause is logged, never surfaced to the end user.
	ErrAnswerFailed = errors.New("failed to generate a response")
)
