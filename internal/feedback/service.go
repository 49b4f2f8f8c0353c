package feedback

import (
	"context"
	"fmt"
	"time"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/pkg/logger"

	"github.com/google/uuid"
)

// Repository abstracts feedback persistence.
type Repository interface {
	CreateForCall(ctx context.Context, fb Feedback) (Feedback, error)
	GetByID(ctx context.Context, id string) (Feedback, error)
	Delete(ctx context.Context, id string) error
	ListByCall(ctx context.Context, callID string) ([]Feedback, error)
	AvgRatingForCalls(ctx context.Context, callIDs []string) (*float64, error)
}

// CreateInput is the validated-at-the-boundary request body for new feedback.
type CreateInput struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates and persists a rating for an existing call.
func (s *Service) Create(ctx context.Context, callID string, in CreateInput) (Feedback, error) {
	if callID == "" {
		return Feedback{}, apperr.Validation("callId is required")
	}
	if in.Rating < MinRating || in.Rating > MaxRating {
		return Feedback{}, apperr.Validation(fmt.Sprintf("Rating must be between %d and %d", MinRating, MaxRating))
	}

	fb := Feedback{
		ID:        uuid.NewString(),
		CallID:    callID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: s.now().UTC(),
	}

	created, err := s.repo.CreateForCall(ctx, fb)
	if err != nil {
		return Feedback{}, err
	}

	logger.From(ctx).Info("feedback created", "feedback_id", created.ID, "call_id", callID, "rating", in.Rating)
	return created, nil
}

// Delete removes a feedback row, reporting not-found distinctly.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Validation("feedbackId is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.From(ctx).Info("feedback deleted", "feedback_id", id)
	return nil
}

// ListByCall returns all feedback for a call, newest first.
func (s *Service) ListByCall(ctx context.Context, callID string) ([]Feedback, error) {
	return s.repo.ListByCall(ctx, callID)
}
