package persistence

import (
	"time"

	"github.com/google/uuid"

	"vozlocal/pkg/proto"
)

// Citizen is the persistent identity behind a hashed user key. The raw
// channel address is never stored.
type Citizen struct {
	CreatedAt      time.Time `json:"created_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	ID             string    `json:"id"`
	UserKeyHash    string    `json:"user_key_hash"`
	DisplayName    string    `json:"display_name,omitempty"`
	City           string    `json:"city,omitempty"`
	InclusionGroup string    `json:"inclusion_group,omitempty"`
}

// Interaction is one append-only opinion, view, or reaction record.
type Interaction struct {
	CreatedAt time.Time             `json:"created_at"`
	ID        string                `json:"id"`
	CitizenID string                `json:"citizen_id"`
	BillID    string                `json:"bill_id,omitempty"`
	Kind      proto.InteractionKind `json:"kind"`
	Opinion   proto.OpinionValue    `json:"opinion,omitempty"`
}

// Proposal is one free-text citizen submission, classified before insert.
type Proposal struct {
	CreatedAt       time.Time         `json:"created_at"`
	Confidence      float64           `json:"confidence"`
	ID              string            `json:"id"`
	CitizenID       string            `json:"citizen_id"`
	Content         string            `json:"content"`
	ContentKind     proto.ContentKind `json:"content_kind"`
	Summary         string            `json:"summary,omitempty"`
	City            string            `json:"city,omitempty"`
	InclusionGroup  string            `json:"inclusion_group,omitempty"`
	PrimaryTheme    proto.Theme       `json:"primary_theme"`
	SecondaryThemes []proto.Theme     `json:"secondary_themes,omitempty"`
	NeedsReview     bool              `json:"needs_review"`
}

// Bill is a legislative bill record, read-mostly from this pipeline's
// perspective (an external scraper collaborator maintains it).
type Bill struct {
	CreatedAt    time.Time        `json:"created_at"`
	ID           string           `json:"id"`
	ExternalID   string           `json:"external_id,omitempty"`
	Title        string           `json:"title"`
	Summary      string           `json:"summary,omitempty"`
	PrimaryTheme proto.Theme      `json:"primary_theme"`
	City         string           `json:"city,omitempty"`
	Status       proto.BillStatus `json:"status"`
}

// GapMetric is one cached gap computation for a dimension key. Fully
// recomputable; rewritten on every refresh.
type GapMetric struct {
	ComputedAt    time.Time `json:"computed_at"`
	GapPercent    float64   `json:"gap_percent"`
	DimensionKind string    `json:"dimension_kind"`
	DimensionKey  string    `json:"dimension_key"`
	Severity      string    `json:"severity"`
	DemandCount   int       `json:"demand_count"`
	BillCount     int       `json:"bill_count"`
}

// GenerateID returns a new UUID for any record.
func GenerateID() string {
	return uuid.New().String()
}
