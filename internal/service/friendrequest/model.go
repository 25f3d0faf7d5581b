package friendrequest

import (
	"time"
)

// Status is the lifecycle state of a friend request. PENDING is the only
// non-terminal state. EXPIRED is projection-only on user paths: the
// lifecycle never writes it, it appears on values returned to callers;
// only admin flows may store it explicitly.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusIgnored  Status = "IGNORED"
	StatusCanceled Status = "CANCELED"
	StatusExpired  Status = "EXPIRED"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusIgnored, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// Action is the recipient's response to a pending request.
type Action string

const (
	ActionAccept  Action = "ACCEPT"
	ActionIgnore  Action = "IGNORE"
	ActionDecline Action = "DECLINE"
)

// FriendRequest is one request row. ResponseDate is nil while the request
// is pending.
type FriendRequest struct {
	ID           int64      `json:"id"`
	RequesterID  int64      `json:"requesterId"`
	RecipientID  int64      `json:"recipientId"`
	Content      string     `json:"content"`
	Status       Status     `json:"status"`
	Reason       *string    `json:"reason,omitempty"`
	CreationDate time.Time  `json:"creationDate"`
	ResponseDate *time.Time `json:"responseDate,omitempty"`
}

// HandleResult is the outcome of handling a request. The group indexes are
// set only on ACCEPT: for each side, the index of the relationship group
// that received the new relationship.
type HandleResult struct {
	Request             *FriendRequest `json:"request"`
	RequesterGroupIndex *int32         `json:"requesterGroupIndex,omitempty"`
	RecipientGroupIndex *int32         `json:"recipientGroupIndex,omitempty"`
}
