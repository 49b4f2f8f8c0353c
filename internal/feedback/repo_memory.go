package feedback

import (
	"context"
	"sort"
	"sync"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/internal/calls"
)

// MemoryRepo is an in-memory feedback repository for tests.
// When Calls is set, CreateForCall enforces call existence like the FK does.
type MemoryRepo struct {
	mu    sync.Mutex
	Rows  []Feedback
	Calls *calls.MemoryRepo
}

func NewMemoryRepo(callRepo *calls.MemoryRepo) *MemoryRepo {
	return &MemoryRepo{Calls: callRepo}
}

func (r *MemoryRepo) CreateForCall(ctx context.Context, fb Feedback) (Feedback, error) {
	if r.Calls != nil {
		if _, err := r.Calls.GetByID(ctx, fb.CallID); err != nil {
			return Feedback{}, apperr.NotFound("Call not found")
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rows = append(r.Rows, fb)
	return fb, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fb := range r.Rows {
		if fb.ID == id {
			return fb, nil
		}
	}
	return Feedback{}, apperr.NotFound("Feedback not found")
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, fb := range r.Rows {
		if fb.ID == id {
			r.Rows = append(r.Rows[:i], r.Rows[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("Feedback not found")
}

func (r *MemoryRepo) ListByCall(ctx context.Context, callID string) ([]Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Feedback, 0)
	for _, fb := range r.Rows {
		if fb.CallID == callID {
			out = append(out, fb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) AvgRatingForCalls(ctx context.Context, callIDs []string) (*float64, error) {
	idSet := make(map[string]struct{}, len(callIDs))
	for _, id := range callIDs {
		idSet[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var sum, n float64
	for _, fb := range r.Rows {
		if _, ok := idSet[fb.CallID]; ok {
			sum += float64(fb.Rating)
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / n
	return &avg, nil
}
