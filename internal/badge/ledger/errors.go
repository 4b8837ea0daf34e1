package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrReverted: the transaction was mined with a failed status.
	ErrReverted = errors.New("mint transaction reverted")
	// ErrUnconfirmed: no receipt appeared before the confirmation timeout.
	// The transaction may still land later.
	ErrUnconfirmed = errors.New("mint transaction unconfirmed")
	// ErrPending: a one-shot receipt check found nothing yet.
	ErrPending = errors.New("mint transaction pending")
	// ErrEventNotFound: the confirmed receipt carries no decodable mint event.
	ErrEventNotFound = errors.New("mint event not found")
	// ErrNoWallet: the user has no ledger address linked.
	ErrNoWallet = errors.New("no wallet linked")
	// ErrSubmissionUnknown: the send call ended without an answer from the
	// node, so the transaction may or may not have been broadcast.
	ErrSubmissionUnknown = errors.New("mint submission outcome unknown")
)

// SignerError reports that the signer refused to submit a transaction.
// Nothing was broadcast when this error is returned.
type SignerError struct {
	Op  string
	Err error
}

func (e *SignerError) Error() string {
	return fmt.Sprintf("signer %s: %v", e.Op, e.Err)
}

func (e *SignerError) Unwrap() error {
	return e.Err
}

// IsSignerError reports whether err came from the signer.
func IsSignerError(err error) bool {
	var se *SignerError
	return errors.As(err, &se)
}
