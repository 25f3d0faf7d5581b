// Package status defines the closed set of response codes surfaced to
// clients and the error type carrying them.
package status

import (
	"errors"
	"fmt"
)

// Code identifies one client-visible outcome. The set is closed: handlers
// map every Code to exactly one HTTP status, and services never invent
// ad-hoc codes.
type Code int

const (
	OK Code = iota
	NoContent
	AlreadyUpToDate
	IllegalArgument

	// Friend request codes
	CreateExistingFriendRequest
	BlockedUserSendFriendRequest
	RecallingFriendRequestDisabled
	NotSenderToRecallFriendRequest
	RecallNonPendingFriendRequest
	NotRecipientToUpdateFriendRequest
	UpdateNonPendingFriendRequest

	ServerInternalError
)

var codeNames = map[Code]string{
	OK:                                "OK",
	NoContent:                         "NO_CONTENT",
	AlreadyUpToDate:                   "ALREADY_UP_TO_DATE",
	IllegalArgument:                   "ILLEGAL_ARGUMENT",
	CreateExistingFriendRequest:       "CREATE_EXISTING_FRIEND_REQUEST",
	BlockedUserSendFriendRequest:      "BLOCKED_USER_TO_SEND_FRIEND_REQUEST",
	RecallingFriendRequestDisabled:    "RECALLING_FRIEND_REQUEST_IS_DISABLED",
	NotSenderToRecallFriendRequest:    "NOT_SENDER_TO_RECALL_FRIEND_REQUEST",
	RecallNonPendingFriendRequest:     "RECALL_NON_PENDING_FRIEND_REQUEST",
	NotRecipientToUpdateFriendRequest: "NOT_RECIPIENT_TO_UPDATE_FRIEND_REQUEST",
	UpdateNonPendingFriendRequest:     "UPDATE_NON_PENDING_FRIEND_REQUEST",
	ServerInternalError:               "SERVER_INTERNAL_ERROR",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// Error is a response code plus optional free-form detail. The detail is
// safe to show to the caller; it must never distinguish "not found" from
// "not authorized" for operations with existence non-leakage requirements.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Detail
}

// New returns an Error with no detail.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Newf returns an Error with formatted detail.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from err, or ServerInternalError if err is not
// a status error.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ServerInternalError
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
