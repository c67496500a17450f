package util

import "errors"

var (
	ErrConfiguration          = errors.New("no usable AI credential configured")
	ErrAllCredentialsInvalid  = errors.New("all AI credentials are invalid or expired")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSessionNotFound        = errors.New("考试会话不存在")
	ErrInvalidLevel           = errors.New("invalid level")
	ErrInvalidPhase           = errors.New("invalid phase")
)
