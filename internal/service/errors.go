package service

import (
	"Realty/internal/repository"
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
	ServiceUnavailable  = 503
)

var (
	ErrParamInvalid      = errors.New("threadId and text are required")
	ErrSenderInvalid     = errors.New("sender must be user or admin")
	ErrThreadIDInvalid   = errors.New("invalid threadId")
	ErrThreadNotFound    = repository.ErrThreadNotFound
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateMessage  = errors.New("message with this clientMsgId is still being processed")
	ErrCursorInvalid     = errors.New("invalid cursor")
	ErrSearchUnavailable = errors.New("thread search is not enabled")
	UnauthorizedError    = errors.New("unauthorized")
	UnExpectedError      = errors.New("internal error, please retry later")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:      BadRequest,
	ErrSenderInvalid:     BadRequest,
	ErrThreadIDInvalid:   BadRequest,
	ErrThreadNotFound:    NotFound,
	ErrForbidden:         Forbidden,
	ErrDuplicateMessage:  Conflict,
	ErrCursorInvalid:     BadRequest,
	ErrSearchUnavailable: ServiceUnavailable,
	UnauthorizedError:    Unauthorized,
	UnExpectedError:      InternalServerError,
}
