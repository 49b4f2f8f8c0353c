package feedback

import "time"

// Rating bounds for call feedback.
const (
	MinRating = 1
	MaxRating = 5
)

// Feedback is a user rating attached to a stored call. Many feedback rows
// may reference the same call.
type Feedback struct {
	ID        string    `json:"id" db:"id"`
	CallID    string    `json:"callId" db:"call_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   *string   `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
