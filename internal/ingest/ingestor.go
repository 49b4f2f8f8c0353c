package ingest

import (
	"context"
	"encoding/json"
	"time"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/internal/calls"
	"callcenter-analytics/pkg/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the ingestor needs. The database's unique
// constraint on conversation_id is the canonical idempotency guard; Create
// must surface a duplicate key as a conflict error.
type Store interface {
	FindByConversationID(ctx context.Context, conversationID string) (calls.Call, bool, error)
	Create(ctx context.Context, call calls.Call) (calls.Call, error)
}

// AgentDirectory resolves display names for agent ids. Lookups are
// best-effort: the ingestor swallows every failure.
type AgentDirectory interface {
	AgentName(ctx context.Context, agentID string) (string, error)
}

// Result reports what the pipeline did with a delivery.
type Result struct {
	CallID           string
	AlreadyProcessed bool
}

// Ingestor runs the webhook pipeline: verify, parse, validate, dedupe,
// enrich, map and persist.
type Ingestor struct {
	secret string
	store  Store
	agents AgentDirectory
	now    func() time.Time
}

func NewIngestor(secret string, store Store, agents AgentDirectory) *Ingestor {
	return &Ingestor{secret: secret, store: store, agents: agents, now: time.Now}
}

// Ingest processes one signed delivery. rawBody must be the exact bytes the
// sender signed; sigHeader is the composite signature header value.
//
// Rejections before the transactional commit leave no state behind. A second
// delivery of the same conversation_id returns the original record's id with
// AlreadyProcessed set.
func (ing *Ingestor) Ingest(ctx context.Context, rawBody []byte, sigHeader string) (Result, error) {
	log := logger.From(ctx)

	if _, err := VerifySignature(rawBody, sigHeader, ing.secret, ing.now()); err != nil {
		log.Warn("webhook signature rejected", "reason", err.Error())
		return Result{}, err
	}

	var event WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return Result{}, apperr.Validation("Invalid JSON payload")
	}

	if event.Type != EventTypeTranscription {
		log.Warn("unsupported webhook type", "type", event.Type)
		return Result{}, apperr.Validation("Unsupported webhook type")
	}
	if event.Data.ConversationID == "" {
		return Result{}, apperr.Validation("Missing required field: conversation_id")
	}
	if event.Data.AgentID == "" {
		return Result{}, apperr.Validation("Missing required field: agent_id")
	}

	// Advisory pre-check. The unique constraint is still the authority; this
	// just short-circuits the common redelivery case.
	existing, found, err := ing.store.FindByConversationID(ctx, event.Data.ConversationID)
	if err != nil {
		return Result{}, err
	}
	if found {
		log.Info("call already processed", "conversation_id", event.Data.ConversationID, "call_id", existing.ID)
		return Result{CallID: existing.ID, AlreadyProcessed: true}, nil
	}

	now := ing.now().UTC()
	call := mapEvent(event, now)
	call.ID = uuid.NewString()
	call.CreatedAt = now
	call.UpdatedAt = now
	call.AgentName = ing.resolveAgentName(ctx, event.Data.AgentID)

	created, err := ing.store.Create(ctx, call)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return ing.recoverDuplicate(ctx, event.Data.ConversationID, err)
		}
		return Result{}, err
	}

	log.Info("webhook processed",
		"conversation_id", created.ConversationID,
		"call_id", created.ID,
		"messages", created.Messages,
	)
	return Result{CallID: created.ID}, nil
}

// recoverDuplicate handles the pre-check race: a concurrent delivery won the
// insert, so the constraint violation means "already processed". Re-fetch and
// converge on the idempotent success outcome.
func (ing *Ingestor) recoverDuplicate(ctx context.Context, conversationID string, cause error) (Result, error) {
	existing, found, err := ing.store.FindByConversationID(ctx, conversationID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, cause
	}
	logger.From(ctx).Info("duplicate delivery lost insert race", "conversation_id", conversationID, "call_id", existing.ID)
	return Result{CallID: existing.ID, AlreadyProcessed: true}, nil
}

func (ing *Ingestor) resolveAgentName(ctx context.Context, agentID string) *string {
	if ing.agents == nil {
		return nil
	}
	name, err := ing.agents.AgentName(ctx, agentID)
	if err != nil {
		logger.From(ctx).Warn("agent lookup failed, continuing without name", "agent_id", agentID, "error", err.Error())
		return nil
	}
	if name == "" {
		return nil
	}
	return &name
}
