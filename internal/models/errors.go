package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service.
var (
	// ErrLedgerUnavailable wraps transport failures talking to the ledger
	// node. Transient; safe to retry at the calling layer and never to be
	// interpreted as "not subscribed".
	ErrLedgerUnavailable = errors.New("ledger node unavailable")

	// ErrUnknownCommunity is returned for communities never declared.
	ErrUnknownCommunity = errors.New("unknown community")
)

// ValidationKind identifies which structural check a submitted tick failed.
type ValidationKind int

const (
	RecipientMismatch ValidationKind = iota
	BurnSenderMismatch
	BurnRecipientMismatch
	AmountMismatch
	NonceMismatch
)

func (k ValidationKind) String() string {
	switch k {
	case RecipientMismatch:
		return "RecipientMismatch"
	case BurnSenderMismatch:
		return "BurnSenderMismatch"
	case BurnRecipientMismatch:
		return "BurnRecipientMismatch"
	case AmountMismatch:
		return "AmountMismatch"
	case NonceMismatch:
		return "NonceMismatch"
	default:
		return fmt.Sprintf("ValidationKind(%d)", int(k))
	}
}

// ValidationError rejects a submitted tick. Always client-caused, never
// retried, surfaced verbatim to the caller with the offending field.
type ValidationError struct {
	Kind     ValidationKind
	Field    string
	Expected string
	Got      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (expected %s, got %s)", e.Kind, e.Field, e.Expected, e.Got)
}

// MalformedResponseError is returned when the ledger node produced
// undecodable data. Fatal for the request, not retried, carries the
// offending payload for diagnosis.
type MalformedResponseError struct {
	Endpoint string
	Payload  []byte
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed ledger response from %s: %v", e.Endpoint, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// SubmissionRejectedError is returned when the ledger refused a batch,
// e.g. on a nonce conflict or insufficient balance. A rejection is a
// failed renewal attempt; it never retroactively deactivates a
// subscription that was still within its period.
type SubmissionRejectedError struct {
	Code   int
	Reason string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("ledger rejected submission (code %d): %s", e.Code, e.Reason)
}
