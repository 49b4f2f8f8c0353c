package ingest

import (
	"math"
	"time"

	"callcenter-analytics/internal/calls"
)

// mapEvent normalizes a validated event into a call record candidate.
// Identity, agent name and persistence timestamps are filled in later by the
// ingestor; everything else is derived here.
func mapEvent(ev WebhookEvent, now time.Time) calls.Call {
	data := ev.Data
	meta := data.Metadata

	startTime := now
	if meta.StartTimeUnixSecs > 0 {
		startTime = time.Unix(meta.StartTimeUnixSecs, 0).UTC()
	}
	var acceptedTime *time.Time
	if meta.AcceptedTimeUnixSecs > 0 {
		t := time.Unix(meta.AcceptedTimeUnixSecs, 0).UTC()
		acceptedTime = &t
	}
	// Duration is declared non-negative; clamp so endTime never precedes
	// startTime on a malformed payload.
	duration := meta.CallDurationSecs
	if duration < 0 {
		duration = 0
	}
	endTime := startTime.Add(time.Duration(duration) * time.Second)

	var userTurns, agentTurns int
	for _, entry := range data.Transcript {
		switch entry.Role {
		case calls.RoleUser:
			userTurns++
		case calls.RoleAgent:
			agentTurns++
		}
	}

	status := data.Status
	if status == "" {
		status = "unknown"
	}
	mainLanguage := data.MainLanguage
	if mainLanguage == "" {
		mainLanguage = "en"
	}

	terminationReason := data.TerminationReason
	if terminationReason == "" {
		terminationReason = meta.TerminationReason
	}

	// Cost arrives in fractional cents; the record stores whole cents.
	var cost *int64
	if meta.Cost != nil {
		rounded := int64(math.Round(*meta.Cost))
		cost = &rounded
	}

	return calls.Call{
		ConversationID: data.ConversationID,
		AgentID:        data.AgentID,
		BranchID:       optional(data.BranchID),
		UserID:         optional(data.UserID),

		Status:            status,
		TerminationReason: optional(terminationReason),

		StartTime:        startTime,
		AcceptedTime:     acceptedTime,
		EndTime:          endTime,
		CallDurationSecs: duration,

		Transcript:        calls.Transcript(data.Transcript),
		TranscriptSummary: optional(data.Analysis.TranscriptSummary),
		// The provider has no distinct call_summary field; mirror the
		// transcript summary.
		CallSummary:      optional(data.Analysis.TranscriptSummary),
		CallSummaryTitle: optional(data.Analysis.CallSummaryTitle),

		MainLanguage:   mainLanguage,
		CallSuccessful: optional(data.Analysis.CallSuccessful),

		Messages:       len(data.Transcript),
		UserTurnCount:  userTurns,
		AgentTurnCount: agentTurns,
		TotalTurnCount: len(data.Transcript),

		Cost:       cost,
		CallCharge: meta.Charging.CallCharge,
		LLMCost:    meta.Charging.LLMCharge,
		LLMPrice:   meta.Charging.LLMPrice,

		InitiationSource:        optional(data.InitiationSource),
		InitiationSourceVersion: optional(data.InitiationSourceVersion),
		InitiatorID:             optional(data.InitiatorID),
		Timezone:                optional(data.Timezone),
		FeaturesUsed:            data.FeaturesUsage,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
