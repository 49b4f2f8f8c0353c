package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/pkg/logger"
)

// Query bounds and result shaping limits.
const (
	QueryMinLength = 1
	QueryMaxLength = 1000
	TopKDefault    = 5
	TopKMin        = 1
	TopKMax        = 50

	snippetMaxLength = 500
)

// SearchRequest is the inbound search body. TopK of zero means "use the
// default". HotelName and Category are accepted but not yet used as filters.
type SearchRequest struct {
	Query     string `json:"query"`
	TopK      int    `json:"topK"`
	Location  string `json:"location"`
	HotelName string `json:"hotel_name"`
	Category  string `json:"category"`
}

// Result is one semantic search hit.
type Result struct {
	ID        string   `json:"id"`
	Text      *string  `json:"text"`
	SourceURL *string  `json:"source_url"`
	Score     *float64 `json:"score"`
}

// Response echoes the effective query parameters back with the hits.
type Response struct {
	Results []Result `json:"results"`
	Query   string   `json:"query"`
	TopK    int      `json:"topK"`
}

// Index is the vector store the service proxies to.
type Index interface {
	Search(ctx context.Context, query string, topK int, filter map[string]string) ([]Result, error)
}

type Service struct {
	index Index
}

func NewService(index Index) *Service {
	return &Service{index: index}
}

func (r SearchRequest) normalize() (SearchRequest, error) {
	r.Query = strings.TrimSpace(r.Query)
	if len(r.Query) < QueryMinLength {
		return r, apperr.Validation("query cannot be empty")
	}
	if len(r.Query) > QueryMaxLength {
		return r, apperr.Validation(fmt.Sprintf("query must be less than %d characters", QueryMaxLength))
	}
	if r.TopK == 0 {
		r.TopK = TopKDefault
	}
	if r.TopK < TopKMin || r.TopK > TopKMax {
		return r, apperr.Validation(fmt.Sprintf("topK must be a number between %d and %d", TopKMin, TopKMax))
	}
	return r, nil
}

// Search validates the request and runs a semantic search against the index.
func (s *Service) Search(ctx context.Context, req SearchRequest) (Response, error) {
	req, err := req.normalize()
	if err != nil {
		return Response{}, err
	}

	var filter map[string]string
	if req.Location != "" {
		filter = map[string]string{"location": req.Location}
	}

	hits, err := s.index.Search(ctx, req.Query, req.TopK, filter)
	if err != nil {
		return Response{}, err
	}

	logger.From(ctx).Info("knowledge search completed",
		"query_length", len(req.Query),
		"result_count", len(hits),
		"top_k", req.TopK,
	)
	return Response{
		Results: formatResults(hits),
		Query:   req.Query,
		TopK:    req.TopK,
	}, nil
}

// formatResults truncates long snippets for display. The cut backs up to a
// rune boundary so a multi-byte character is never split.
func formatResults(results []Result) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		if r.Text != nil && len(*r.Text) > snippetMaxLength {
			cut := snippetMaxLength
			for cut > 0 && !utf8.RuneStart((*r.Text)[cut]) {
				cut--
			}
			truncated := (*r.Text)[:cut] + "..."
			r.Text = &truncated
		}
		out[i] = r
	}
	return out
}
