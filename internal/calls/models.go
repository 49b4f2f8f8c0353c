package calls

import (
	"encoding/json"
	"time"
)

// Call is the canonical record of a completed AI-voice-agent phone call.
//
// Identity invariant: ConversationID is the externally-supplied idempotency
// key and is unique across all records. A second ingestion attempt with the
// same ConversationID must never create a duplicate.
//
// Records are immutable after creation; AgentName is set synchronously during
// the same creation. Deletion happens only through the admin surface.
type Call struct {
	ID             string `json:"id" db:"id"`
	ConversationID string `json:"conversationId" db:"conversation_id"`

	AgentID   string  `json:"agentId" db:"agent_id"`
	AgentName *string `json:"agentName" db:"agent_name"`
	BranchID  *string `json:"branchId" db:"branch_id"`
	UserID    *string `json:"userId" db:"user_id"`

	Status            string  `json:"status" db:"status"`
	TerminationReason *string `json:"terminationReason" db:"termination_reason"`

	StartTime    time.Time  `json:"startTime" db:"start_time"`
	AcceptedTime *time.Time `json:"acceptedTime" db:"accepted_time"`
	// EndTime is derived (start + duration), never supplied directly.
	EndTime          time.Time `json:"endTime" db:"end_time"`
	CallDurationSecs int       `json:"callDurationSecs" db:"call_duration_secs"`

	Transcript        Transcript `json:"transcript" db:"transcript"`
	TranscriptSummary *string    `json:"transcriptSummary" db:"transcript_summary"`
	CallSummary       *string    `json:"callSummary" db:"call_summary"`
	CallSummaryTitle  *string    `json:"callSummaryTitle" db:"call_summary_title"`

	MainLanguage   string  `json:"mainLanguage" db:"main_language"`
	CallSuccessful *string `json:"callSuccessful" db:"call_successful"`

	// Derived from the transcript at ingestion time.
	Messages       int `json:"messages" db:"messages"`
	UserTurnCount  int `json:"userTurnCount" db:"user_turn_count"`
	AgentTurnCount int `json:"agentTurnCount" db:"agent_turn_count"`
	TotalTurnCount int `json:"totalTurnCount" db:"total_turn_count"`

	// Cost is in integer cents; the remaining charge fields keep the
	// provider's units as-is.
	Cost       *int64   `json:"cost" db:"cost"`
	CallCharge *float64 `json:"callCharge" db:"call_charge"`
	LLMCost    *float64 `json:"llmCost" db:"llm_cost"`
	LLMPrice   *float64 `json:"llmPrice" db:"llm_price"`

	InitiationSource        *string         `json:"initiationSource" db:"initiation_source"`
	InitiationSourceVersion *string         `json:"initiationSourceVersion" db:"initiation_source_version"`
	InitiatorID             *string         `json:"initiatorId" db:"initiator_id"`
	Timezone                *string         `json:"timezone" db:"timezone"`
	FeaturesUsed            json.RawMessage `json:"featuresUsed" db:"features_used"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ListItem is the reduced projection returned by the listing endpoint.
type ListItem struct {
	ID               string     `json:"id"`
	ConversationID   string     `json:"conversationId"`
	AgentID          string     `json:"agentId"`
	AgentName        *string    `json:"agentName"`
	StartTime        time.Time  `json:"startTime"`
	AcceptedTime     *time.Time `json:"acceptedTime"`
	EndTime          time.Time  `json:"endTime"`
	CallDurationSecs int        `json:"callDurationSecs"`
	CallSummaryTitle *string    `json:"callSummaryTitle"`
	CallSuccessful   *string    `json:"callSuccessful"`
	Messages         int        `json:"messages"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// ListItem projects the reduced listing shape out of a full record.
func (c Call) ListItem() ListItem {
	return ListItem{
		ID:               c.ID,
		ConversationID:   c.ConversationID,
		AgentID:          c.AgentID,
		AgentName:        c.AgentName,
		StartTime:        c.StartTime,
		AcceptedTime:     c.AcceptedTime,
		EndTime:          c.EndTime,
		CallDurationSecs: c.CallDurationSecs,
		CallSummaryTitle: c.CallSummaryTitle,
		CallSuccessful:   c.CallSuccessful,
		Messages:         c.Messages,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// Transcript turn roles as sent by the voice-agent provider.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

// CallSuccessful values observed from the provider's analysis block.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeUnknown = "unknown"
)

// Transcript is an ordered sequence of provider turns, stored opaque.
type Transcript []TranscriptEntry

// TranscriptEntry preserves the provider's full turn payload while exposing
// the role needed for derived counts. Unknown keys pass through untouched.
type TranscriptEntry struct {
	Role string
	Raw  json.RawMessage
}

func (e *TranscriptEntry) UnmarshalJSON(b []byte) error {
	var head struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	e.Role = head.Role
	e.Raw = append([]byte(nil), b...)
	return nil
}

func (e TranscriptEntry) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(struct {
		Role string `json:"role"`
	}{Role: e.Role})
}
