package utils

import (
	"context"
	"testing"
	"time"
)

func TestCacheHelpersRejectBadInput(t *testing.T) {
	ctx := context.Background()

	if err := CacheGetJSON(ctx, nil, "k", &struct{}{}); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := CacheSetJSON(ctx, nil, "k", struct{}{}, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
