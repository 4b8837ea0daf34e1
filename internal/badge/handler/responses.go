package handler

import (
	"time"

	"skillbadge/internal/badge/models"
)

type issueResponse struct {
	Outcome      models.Outcome              `json:"outcome"`
	Reason       string                      `json:"reason,omitempty"`
	AttemptID    string                      `json:"attempt_id"`
	TokenID      string                      `json:"token_id,omitempty"`
	Badge        *badgeResponse              `json:"badge,omitempty"`
	Verification *models.VerificationOutcome `json:"verification,omitempty"`
}

type badgeResponse struct {
	Cluster  string    `json:"cluster"`
	ImageURL string    `json:"image_url"`
	TokenID  string    `json:"token_id"`
	MintedAt time.Time `json:"minted_at"`
}

type badgeListResponse struct {
	Badges []badgeResponse `json:"badges"`
}

type catalogResponse struct {
	Badges []models.BadgeMetadata `json:"badges"`
}

type attemptResponse struct {
	ID        string         `json:"id"`
	State     models.State   `json:"state"`
	Reason    string         `json:"reason,omitempty"`
	Cluster   string         `json:"cluster,omitempty"`
	TxHash    string         `json:"tx_hash,omitempty"`
	TokenID   string         `json:"token_id,omitempty"`
	TokenURI  string         `json:"token_uri,omitempty"`
	Badge     *badgeResponse `json:"badge,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toBadge(b models.BadgeRecord) badgeResponse {
	return badgeResponse{
		Cluster:  b.Cluster,
		ImageURL: b.ImageURL,
		TokenID:  b.TokenID,
		MintedAt: b.MintedAt,
	}
}

func toIssueResponse(r models.WorkflowResult) issueResponse {
	resp := issueResponse{
		Outcome:      r.Outcome,
		Reason:       string(r.Reason),
		AttemptID:    r.AttemptID.String(),
		TokenID:      r.TokenID,
		Verification: r.Verification,
	}
	if r.Badge != nil {
		b := toBadge(*r.Badge)
		resp.Badge = &b
	}
	return resp
}

func toBadgeList(badges []models.BadgeRecord) badgeListResponse {
	out := badgeListResponse{Badges: make([]badgeResponse, 0, len(badges))}
	for _, b := range badges {
		out.Badges = append(out.Badges, toBadge(b))
	}
	return out
}

func toAttemptResponse(a *models.Attempt) attemptResponse {
	resp := attemptResponse{
		ID:        a.ID.String(),
		State:     a.State,
		Reason:    string(a.Reason),
		Cluster:   a.Cluster,
		TxHash:    a.TxHash,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Receipt != nil {
		resp.TokenID = a.Receipt.TokenID
		resp.TokenURI = a.Receipt.TokenURI
	}
	if a.Badge != nil {
		b := toBadge(*a.Badge)
		resp.Badge = &b
	}
	return resp
}
