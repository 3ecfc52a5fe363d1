package domain

import (
	"errors"
	"fmt"
)

// RejectionReason enumerates why the message store refused a create. A
// rejection is recoverable: the sender gets an error frame, nothing is
// broadcast, and the connection stays joined.
type RejectionReason string

const (
	RejectionSenderBlocked   RejectionReason = "sender_blocked"
	RejectionAttachmentFirst RejectionReason = "attachment_before_first_message"
	RejectionPayloadTooLarge RejectionReason = "payload_too_large"
	RejectionChatNotFound    RejectionReason = "chat_not_found"
)

// Rejection is returned by the message store when a create is refused for a
// business reason rather than an infrastructure failure.
type Rejection struct {
	Reason RejectionReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("message rejected: %s", r.Reason)
	}
	return fmt.Sprintf("message rejected: %s (%s)", r.Reason, r.Detail)
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
