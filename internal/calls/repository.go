package calls

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/pkg/utils"
)

//go:embed schema.sql
var schemaSQL string

// Repository is the Postgres persistence layer for call records.
type Repository struct {
	db *sql.DB
	tx utils.TxConfig
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schemaSQL)
	return err
}

const callColumns = `
id, conversation_id, agent_id, agent_name, branch_id, user_id,
status, termination_reason, start_time, accepted_time, end_time, call_duration_secs,
transcript, transcript_summary, call_summary, call_summary_title,
main_language, call_successful, messages, user_turn_count, agent_turn_count, total_turn_count,
cost, call_charge, llm_cost, llm_price,
initiation_source, initiation_source_version, initiator_id, timezone, features_used,
created_at, updated_at`

// Create persists a new call inside a bounded transaction.
// A unique violation on conversation_id is classified as a conflict; the
// ingestion path converts that into an idempotent success.
func (r *Repository) Create(ctx context.Context, call Call) (Call, error) {
	err := utils.WithTx(ctx, r.db, r.tx, func(ctx context.Context, tx *sql.Tx) error {
		return insertCall(ctx, tx, call)
	})
	if err != nil {
		return Call{}, apperr.FromStorage(err)
	}
	return call, nil
}

func insertCall(ctx context.Context, tx *sql.Tx, c Call) error {
	transcriptJSON, err := json.Marshal(c.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	const q = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33)
`
	_, err = tx.ExecContext(ctx, q,
		c.ID,
		c.ConversationID,
		c.AgentID,
		c.AgentName,
		c.BranchID,
		c.UserID,
		c.Status,
		c.TerminationReason,
		c.StartTime,
		c.AcceptedTime,
		c.EndTime,
		c.CallDurationSecs,
		transcriptJSON,
		c.TranscriptSummary,
		c.CallSummary,
		c.CallSummaryTitle,
		c.MainLanguage,
		c.CallSuccessful,
		c.Messages,
		c.UserTurnCount,
		c.AgentTurnCount,
		c.TotalTurnCount,
		c.Cost,
		c.CallCharge,
		c.LLMCost,
		c.LLMPrice,
		c.InitiationSource,
		c.InitiationSourceVersion,
		c.InitiatorID,
		c.Timezone,
		nullableJSON(c.FeaturesUsed),
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// FindByConversationID is the ingestion pre-check lookup.
func (r *Repository) FindByConversationID(ctx context.Context, conversationID string) (Call, bool, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE conversation_id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, conversationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, false, nil
		}
		return Call{}, false, apperr.FromStorage(err)
	}
	return c, true, nil
}

// GetByID fetches a full call record by internal id.
func (r *Repository) GetByID(ctx context.Context, id string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, apperr.NotFound("Call not found")
		}
		return Call{}, apperr.FromStorage(err)
	}
	return c, nil
}

// List returns one page of reduced call rows plus the unpaged total,
// ordered by start time descending.
func (r *Repository) List(ctx context.Context, filter ListFilter, page Page) ([]ListItem, int, error) {
	page = page.Normalized()
	where, args := buildWhere(filter)

	countQuery := `SELECT COUNT(*) FROM calls` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.FromStorage(err)
	}

	listQuery := `
SELECT id, conversation_id, agent_id, agent_name, start_time, accepted_time, end_time,
       call_duration_secs, call_summary_title, call_successful, messages, created_at, updated_at
FROM calls` + where + fmt.Sprintf(`
ORDER BY start_time DESC
LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, listQuery, append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, apperr.FromStorage(err)
	}
	defer rows.Close()

	items := make([]ListItem, 0, page.PageSize)
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(
			&it.ID,
			&it.ConversationID,
			&it.AgentID,
			&it.AgentName,
			&it.StartTime,
			&it.AcceptedTime,
			&it.EndTime,
			&it.CallDurationSecs,
			&it.CallSummaryTitle,
			&it.CallSuccessful,
			&it.Messages,
			&it.CreatedAt,
			&it.UpdatedAt,
		); err != nil {
			return nil, 0, apperr.FromStorage(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.FromStorage(err)
	}
	return items, total, nil
}

// Delete removes a call (admin path). Feedback rows cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calls WHERE id = $1`, id)
	if err != nil {
		return apperr.FromStorage(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.FromStorage(err)
	}
	if n == 0 {
		return apperr.NotFound("Call not found")
	}
	return nil
}

// Stats aggregates call count and average duration over a start-time range.
// avgDuration is nil when the range holds zero calls.
func (r *Repository) Stats(ctx context.Context, from, until time.Time) (int, *float64, error) {
	const q = `
SELECT COUNT(*), AVG(call_duration_secs)
FROM calls
WHERE start_time >= $1 AND start_time <= $2`

	var total int
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, q, from, until).Scan(&total, &avg); err != nil {
		return 0, nil, apperr.FromStorage(err)
	}
	if !avg.Valid {
		return total, nil, nil
	}
	return total, &avg.Float64, nil
}

// IDsInRange returns ids of calls whose start time falls inside the range.
// Used as the key set for the feedback rating aggregate.
func (r *Repository) IDsInRange(ctx context.Context, from, until time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM calls WHERE start_time >= $1 AND start_time <= $2`, from, until)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.FromStorage(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStorage(err)
	}
	return ids, nil
}

func buildWhere(f ListFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.FromDate != nil {
		add("start_time >= $%d", *f.FromDate)
	}
	if f.UntilDate != nil {
		add("start_time <= $%d", *f.UntilDate)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.AgentID != "" {
		add("agent_id = $%d", f.AgentID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var transcriptJSON []byte
	var featuresJSON []byte

	err := row.Scan(
		&c.ID,
		&c.ConversationID,
		&c.AgentID,
		&c.AgentName,
		&c.BranchID,
		&c.UserID,
		&c.Status,
		&c.TerminationReason,
		&c.StartTime,
		&c.AcceptedTime,
		&c.EndTime,
		&c.CallDurationSecs,
		&transcriptJSON,
		&c.TranscriptSummary,
		&c.CallSummary,
		&c.CallSummaryTitle,
		&c.MainLanguage,
		&c.CallSuccessful,
		&c.Messages,
		&c.UserTurnCount,
		&c.AgentTurnCount,
		&c.TotalTurnCount,
		&c.Cost,
		&c.CallCharge,
		&c.LLMCost,
		&c.LLMPrice,
		&c.InitiationSource,
		&c.InitiationSourceVersion,
		&c.InitiatorID,
		&c.Timezone,
		&featuresJSON,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Call{}, err
	}

	if len(transcriptJSON) > 0 {
		if err := json.Unmarshal(transcriptJSON, &c.Transcript); err != nil {
			return Call{}, fmt.Errorf("unmarshal transcript: %w", err)
		}
	}
	if len(featuresJSON) > 0 {
		c.FeaturesUsed = json.RawMessage(featuresJSON)
	}
	return c, nil
}
