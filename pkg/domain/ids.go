// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"regexp"

	"github.com/google/uuid"

	dErrors "skillbadge/pkg/domain-errors"
)

// MaxUserIDLength bounds the identity-provider handle accepted at trust boundaries.
const MaxUserIDLength = 128

// validUserID matches the handles issued by the identity provider ("user_2abc...").
var validUserID = regexp.MustCompile(`^[a-zA-Z0-9._|:-]+$`)

// Distinct ID types - compiler prevents passing a UserID where an AttemptID is expected.
type (
	// UserID is the opaque handle supplied by the identity provider.
	UserID string
	// AttemptID identifies a single issuance attempt.
	AttemptID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user ID cannot be empty")
	}
	if len(s) > MaxUserIDLength || !validUserID.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid user ID format")
	}
	return UserID(s), nil
}

func ParseAttemptID(s string) (AttemptID, error) {
	if s == "" {
		return AttemptID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "attempt ID cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return AttemptID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "invalid attempt ID format")
	}
	return AttemptID(id), nil
}

// NewAttemptID generates a random attempt identifier.
func NewAttemptID() AttemptID {
	return AttemptID(uuid.New())
}

func (id UserID) String() string    { return string(id) }
func (id AttemptID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return id == "" }
func (id AttemptID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the attempt ID in canonical UUID form for JSON and logs.
func (id AttemptID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *AttemptID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = AttemptID(u)
	return nil
}
