package models

import (
	"fmt"

	dErrors "skillbadge/pkg/domain-errors"
)

// State is the position of an attempt in the issuance saga.
type State string

const (
	StateVerifying     State = "verifying"
	StateRejected      State = "rejected"
	StateEligible      State = "eligible"
	StateMinting       State = "minting"
	StateMintFailed    State = "mint_failed"
	StateMintConfirmed State = "mint_confirmed"
	StatePersisting    State = "persisting"
	StateIssued        State = "issued"
	StatePersistFailed State = "persist_failed"
)

// transitions lists the allowed next states. MintFailed may still move to
// MintConfirmed when an unconfirmed transaction lands later, and
// PersistFailed may re-enter Persisting through repair.
var transitions = map[State][]State{
	StateVerifying:     {StateRejected, StateEligible},
	StateEligible:      {StateRejected, StateMinting, StateMintFailed},
	StateMinting:       {StateMintFailed, StateMintConfirmed},
	StateMintFailed:    {StateMintConfirmed},
	StateMintConfirmed: {StatePersisting},
	StatePersisting:    {StateIssued, StatePersistFailed},
	StatePersistFailed: {StatePersisting},
}

// CanTransitionTo validates a state change.
func (s State) CanTransitionTo(next State) error {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("invalid attempt transition %s -> %s", s, next))
}

// Terminal reports whether no automatic progress will follow.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateMintFailed, StateIssued, StatePersistFailed:
		return true
	}
	return false
}

// Reason qualifies Rejected and MintFailed outcomes.
type Reason string

const (
	ReasonInvalidCertificate  Reason = "invalid certificate"
	ReasonPlatformNotVerified Reason = "platform not verified"
	ReasonNoCoursesFound      Reason = "no courses found"
	ReasonVerificationFailed  Reason = "verification failed"
	ReasonUnknownCluster      Reason = "unknown cluster"
	ReasonInProgress          Reason = "issuance in progress"
	ReasonAlreadySubmitted    Reason = "already submitted"
	ReasonNoWallet            Reason = "no wallet linked"
	ReasonSignerRejected      Reason = "signer rejected"
	ReasonSubmissionUnknown   Reason = "submission unknown"
	ReasonReverted            Reason = "reverted"
	ReasonUnconfirmed         Reason = "unconfirmed"
	ReasonEventNotFound       Reason = "mint event not found"
	ReasonStoreError          Reason = "store error"
	ReasonAbandoned           Reason = "abandoned before submission"
)

// Retryable reports whether a fresh attempt for the same certificate may mint
// again. Only failures that prove no token exists qualify.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonUnconfirmed, ReasonEventNotFound, ReasonSubmissionUnknown, ReasonAlreadySubmitted, ReasonInProgress:
		return false
	}
	return true
}
