package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnverified means PayPal did not vouch for the notification.
	ErrUnverified = errors.New("paypal notification not verified")
	// ErrConcurrentRefund means refunds against one parent kept colliding.
	ErrConcurrentRefund = errors.New("concurrent refunds against the same transaction")
)

type Status string

const (
	StatusProcessed Status = "processed"
	StatusIgnored   Status = "ignored"
	StatusRejected  Status = "rejected"
)

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonDuplicateEvent   Reason = "duplicate_event"
	ReasonOutOfPolicy      Reason = "out_of_policy"
	ReasonReferentialGap   Reason = "referential_gap"
	ReasonParentNotFound   Reason = "parent_not_found"
	ReasonReceiverMismatch Reason = "receiver_mismatch"
)

// Outcome is the terminal result of reconciling one notification. Processed
// and Ignored are acknowledged upstream; Rejected is reported as a bad request.
type Outcome struct {
	Status Status
	Reason Reason
	Detail string
}

func processed() Outcome {
	return Outcome{Status: StatusProcessed}
}

func ignored(reason Reason, format string, args ...any) Outcome {
	return Outcome{Status: StatusIgnored, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func rejected(reason Reason, format string, args ...any) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (o Outcome) Acknowledged() bool {
	return o.Status != StatusRejected
}
