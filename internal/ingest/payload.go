package ingest

import (
	"encoding/json"

	"callcenter-analytics/internal/calls"
)

// EventTypeTranscription is the only webhook type this pipeline accepts.
const EventTypeTranscription = "post_call_transcription"

// WebhookEvent is the inbound envelope. The provider sends a bag of extra
// keys alongside these; unknown fields are ignored deterministically, except
// features_usage which passes through opaque.
type WebhookEvent struct {
	Type           string    `json:"type"`
	EventTimestamp int64     `json:"event_timestamp"`
	Data           EventData `json:"data"`
}

type EventData struct {
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	BranchID       string `json:"branch_id"`
	UserID         string `json:"user_id"`
	Status         string `json:"status"`

	TerminationReason string `json:"termination_reason"`
	MainLanguage      string `json:"main_language"`

	Transcript []calls.TranscriptEntry `json:"transcript"`
	Metadata   EventMetadata           `json:"metadata"`
	Analysis   EventAnalysis           `json:"analysis"`

	InitiationSource        string `json:"conversation_initiation_source"`
	InitiationSourceVersion string `json:"conversation_initiation_source_version"`
	InitiatorID             string `json:"initiator_id"`
	Timezone                string `json:"timezone"`

	FeaturesUsage json.RawMessage `json:"features_usage"`
}

type EventMetadata struct {
	StartTimeUnixSecs    int64         `json:"start_time_unix_secs"`
	AcceptedTimeUnixSecs int64         `json:"accepted_time_unix_secs"`
	CallDurationSecs     int           `json:"call_duration_secs"`
	Cost                 *float64      `json:"cost"`
	TerminationReason    string        `json:"termination_reason"`
	Charging             EventCharging `json:"charging"`
}

type EventCharging struct {
	CallCharge *float64 `json:"call_charge"`
	LLMCharge  *float64 `json:"llm_charge"`
	LLMPrice   *float64 `json:"llm_price"`
}

type EventAnalysis struct {
	CallSuccessful    string `json:"call_successful"`
	TranscriptSummary string `json:"transcript_summary"`
	CallSummaryTitle  string `json:"call_summary_title"`
}
