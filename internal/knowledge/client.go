package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/pkg/retry"
)

// VectorClient searches a serverless vector index over its records API.
type VectorClient struct {
	host      string
	apiKey    string
	namespace string
	http      *http.Client
	policy    retry.Policy
}

func NewVectorClient(host, apiKey, namespace string) *VectorClient {
	return &VectorClient{
		host:      host,
		apiKey:    apiKey,
		namespace: namespace,
		http:      &http.Client{Timeout: 10 * time.Second},
		policy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Retryable:   apperr.IsRetryable,
		},
	}
}

type searchRequestBody struct {
	Query  searchQuery `json:"query"`
	Fields []string    `json:"fields"`
}

type searchQuery struct {
	TopK   int               `json:"top_k"`
	Inputs map[string]string `json:"inputs"`
	Filter map[string]string `json:"filter,omitempty"`
}

type searchResponseBody struct {
	Result struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  *float64 `json:"_score"`
			Fields struct {
				Text      *string `json:"text"`
				SourceURL *string `json:"source_url"`
			} `json:"fields"`
		} `json:"hits"`
	} `json:"result"`
}

// Search runs one text query, retrying transient index failures.
func (c *VectorClient) Search(ctx context.Context, query string, topK int, filter map[string]string) ([]Result, error) {
	body := searchRequestBody{
		Query: searchQuery{
			TopK:   topK,
			Inputs: map[string]string{"text": query},
			Filter: filter,
		},
		Fields: []string{"text", "source_url"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode search request", err)
	}

	var results []Result
	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		got, err := c.search(ctx, payload)
		if err != nil {
			return err
		}
		results = got
		return nil
	})
	return results, err
}

func (c *VectorClient) search(ctx context.Context, payload []byte) ([]Result, error) {
	endpoint := fmt.Sprintf("%s/records/namespaces/%s/search", c.host, url.PathEscape(c.namespace))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build search request", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "vector index unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, apperr.New(apperr.KindTransient, fmt.Sprintf("vector index returned %d", resp.StatusCode))
	default:
		return nil, apperr.New(apperr.KindInternal, fmt.Sprintf("vector index returned %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "read search response", err)
	}
	var decoded searchResponseBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "decode search response", err)
	}

	results := make([]Result, 0, len(decoded.Result.Hits))
	for _, hit := range decoded.Result.Hits {
		results = append(results, Result{
			ID:        hit.ID,
			Text:      hit.Fields.Text,
			SourceURL: hit.Fields.SourceURL,
			Score:     hit.Score,
		})
	}
	return results, nil
}
