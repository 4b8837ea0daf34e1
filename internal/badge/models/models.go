package models

import (
	"time"

	id "skillbadge/pkg/domain"
)

// Course is one course the verification service recognized on a certificate.
type Course struct {
	CourseName string `json:"course_name"`
	Cluster    string `json:"cluster"`
}

// VerificationOutcome is the normalized result of a certificate check.
// Error is set only when the outcome was synthesized locally after the
// verification service could not be used.
type VerificationOutcome struct {
	CoursesFound     []Course `json:"courses_found"`
	PlatformVerified bool     `json:"platform_verified"`
	UserNameVerified bool     `json:"user_name_verified"`
	ValidCertificate bool     `json:"valid_certificate"`
	ExtractedText    string   `json:"extracted_text"`
	Error            string   `json:"error,omitempty"`
}

// UnverifiedOutcome builds the all-false outcome used when verification could not run.
func UnverifiedOutcome(reason string) VerificationOutcome {
	return VerificationOutcome{
		CoursesFound: []Course{},
		Error:        reason,
	}
}

// Eligibility decides whether an outcome may proceed to minting and, if so,
// which cluster to mint. The first reported course is authoritative.
func (o VerificationOutcome) Eligibility() (cluster string, reason Reason, ok bool) {
	switch {
	case o.Error != "":
		return "", ReasonVerificationFailed, false
	case !o.ValidCertificate:
		return "", ReasonInvalidCertificate, false
	case !o.PlatformVerified:
		return "", ReasonPlatformNotVerified, false
	case len(o.CoursesFound) == 0:
		return "", ReasonNoCoursesFound, false
	}
	return o.CoursesFound[0].Cluster, "", true
}

// BadgeMetadata describes the asset minted for a cluster.
type BadgeMetadata struct {
	Cluster    string `json:"cluster" yaml:"cluster"`
	SkillName  string `json:"skill_name" yaml:"skill_name"`
	ContentURI string `json:"content_uri" yaml:"content_uri"`
}

// MintReceipt exists only for a submitted and confirmed mint. TokenURI is the
// ledger's value and wins over the requested metadata.
type MintReceipt struct {
	TokenID     string `json:"token_id"`
	TokenURI    string `json:"token_uri"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// BadgeRecord is the durable badge entry on a user profile, unique per TokenID.
type BadgeRecord struct {
	Cluster  string    `json:"cluster" bson:"cluster"`
	ImageURL string    `json:"image_url" bson:"imageUrl"`
	TokenID  string    `json:"token_id" bson:"tokenId"`
	MintedAt time.Time `json:"minted_at" bson:"mintedAt"`
}

// Attempt journals one issuance from upload to terminal state.
type Attempt struct {
	ID          id.AttemptID `json:"id"`
	UserID      id.UserID    `json:"user_id"`
	Fingerprint string       `json:"fingerprint"`
	Cluster     string       `json:"cluster,omitempty"`
	State       State        `json:"state"`
	Reason      Reason       `json:"reason,omitempty"`
	TxHash      string       `json:"tx_hash,omitempty"`
	Receipt     *MintReceipt `json:"receipt,omitempty"`
	Badge       *BadgeRecord `json:"badge,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewAttempt starts a journal entry in the Verifying state.
func NewAttempt(userID id.UserID, fingerprint string, now time.Time) *Attempt {
	return &Attempt{
		ID:          id.NewAttemptID(),
		UserID:      userID,
		Fingerprint: fingerprint,
		State:       StateVerifying,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the attempt to next, recording the reason.
func (a *Attempt) Transition(next State, reason Reason, now time.Time) error {
	if err := a.State.CanTransitionTo(next); err != nil {
		return err
	}
	a.State = next
	a.Reason = reason
	a.UpdatedAt = now
	return nil
}

// Submitted reports whether a mint transaction left this service.
func (a *Attempt) Submitted() bool {
	return a.TxHash != ""
}

// IssueRequest is the caller-facing input to an issuance.
type IssueRequest struct {
	UserID       id.UserID
	Filename     string
	ContentType  string
	Data         []byte
	ExpectedName string
}
