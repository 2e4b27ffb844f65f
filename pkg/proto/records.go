package proto

import "time"

// InteractionKind is the type of a persisted citizen interaction.
type InteractionKind string

const (
	InteractionOpinion  InteractionKind = "opiniao"
	InteractionView     InteractionKind = "visualizacao"
	InteractionReaction InteractionKind = "reacao"
)

// ValidInteractionKind reports whether k is a known interaction kind.
func ValidInteractionKind(k InteractionKind) bool {
	switch k {
	case InteractionOpinion, InteractionView, InteractionReaction:
		return true
	}
	return false
}

// OpinionValue is the position a citizen took on a bill.
type OpinionValue string

const (
	OpinionFor     OpinionValue = "a_favor"
	OpinionAgainst OpinionValue = "contra"
	OpinionSkip    OpinionValue = "pular"
)

// ValidOpinionValue reports whether v is a known opinion value.
func ValidOpinionValue(v OpinionValue) bool {
	switch v {
	case OpinionFor, OpinionAgainst, OpinionSkip:
		return true
	}
	return false
}

// ContentKind distinguishes typed proposals from transcribed voice notes.
type ContentKind string

const (
	ContentText             ContentKind = "texto"
	ContentTranscribedAudio ContentKind = "audio_transcrito"
)

// ValidContentKind reports whether k is a known content kind.
func ValidContentKind(k ContentKind) bool {
	return k == ContentText || k == ContentTranscribedAudio
}

// BillStatus is the tramitation state of a legislative bill.
type BillStatus string

const (
	BillInTramitation BillStatus = "tramitacao"
	BillApproved      BillStatus = "aprovado"
	BillArchived      BillStatus = "arquivado"
)

// ValidBillStatus reports whether s is a known bill status.
func ValidBillStatus(s BillStatus) bool {
	switch s {
	case BillInTramitation, BillApproved, BillArchived:
		return true
	}
	return false
}

// Dimension is a grouping axis for the gap metric.
type Dimension string

const (
	DimensionTheme Dimension = "tema"
	DimensionGroup Dimension = "grupo"
	DimensionCity  Dimension = "municipio"
)

// Dimensions returns all gap dimensions.
func Dimensions() []Dimension {
	return []Dimension{DimensionTheme, DimensionGroup, DimensionCity}
}

// TurnEvent is the event-log record of one processed conversation turn.
type TurnEvent struct {
	Timestamp   time.Time   `json:"timestamp"`
	UserKeyHash string      `json:"user_key_hash"`
	FromStep    SessionStep `json:"from_step"`
	ToStep      SessionStep `json:"to_step"`
	TokenKind   TokenKind   `json:"token_kind"`
	Outbound    int         `json:"outbound_messages"`
	Err         string      `json:"error,omitempty"`
}
