package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"callcenter-analytics/internal/apperr"
)

// MemoryRepo is a simple in-memory call repository for tests and early
// development. It enforces the conversation_id uniqueness invariant the same
// way the database constraint does.
type MemoryRepo struct {
	mu    sync.Mutex
	Calls []Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Create(ctx context.Context, call Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Calls {
		if c.ConversationID == call.ConversationID {
			return Call{}, apperr.Conflict("a record with this value already exists")
		}
	}
	r.Calls = append(r.Calls, call)
	return call, nil
}

func (r *MemoryRepo) FindByConversationID(ctx context.Context, conversationID string) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Calls {
		if c.ConversationID == conversationID {
			return c, true, nil
		}
	}
	return Call{}, false, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Calls {
		if c.ID == id {
			return c, nil
		}
	}
	return Call{}, apperr.NotFound("Call not found")
}

func (r *MemoryRepo) List(ctx context.Context, filter ListFilter, page Page) ([]ListItem, int, error) {
	page = page.Normalized()

	r.mu.Lock()
	matched := make([]Call, 0, len(r.Calls))
	for _, c := range r.Calls {
		if filter.FromDate != nil && c.StartTime.Before(*filter.FromDate) {
			continue
		}
		if filter.UntilDate != nil && c.StartTime.After(*filter.UntilDate) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.AgentID != "" && c.AgentID != filter.AgentID {
			continue
		}
		if filter.UserID != "" && (c.UserID == nil || *c.UserID != filter.UserID) {
			continue
		}
		matched = append(matched, c)
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartTime.After(matched[j].StartTime)
	})

	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.PageSize
	if end > total {
		end = total
	}

	items := make([]ListItem, 0, end-start)
	for _, c := range matched[start:end] {
		items = append(items, c.ListItem())
	}
	return items, total, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.Calls {
		if c.ID == id {
			r.Calls = append(r.Calls[:i], r.Calls[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("Call not found")
}

func (r *MemoryRepo) Stats(ctx context.Context, from, until time.Time) (int, *float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int
	var sum float64
	for _, c := range r.Calls {
		if inRange(c.StartTime, from, until) {
			total++
			sum += float64(c.CallDurationSecs)
		}
	}
	if total == 0 {
		return 0, nil, nil
	}
	avg := sum / float64(total)
	return total, &avg, nil
}

func (r *MemoryRepo) IDsInRange(ctx context.Context, from, until time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, c := range r.Calls {
		if inRange(c.StartTime, from, until) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func inRange(t, from, until time.Time) bool {
	return !t.Before(from) && !t.After(until)
}
