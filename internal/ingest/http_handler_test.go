package ingest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callcenter-analytics/internal/calls"

	"github.com/gin-gonic/gin"
)

func newTestRouter(store *calls.MemoryRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewIngestor(testSecret, store, stubDirectory{})).Register(r)
	return r
}

func TestHandleWebhook_Success(t *testing.T) {
	store := calls.NewMemoryRepo()
	r := newTestRouter(store)

	body := []byte(validBody("conv-http-1"))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice-agent", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, signBody(t, body, testSecret, time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		CallID  string `json:"callId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.CallID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleWebhook_RedeliveryKeepsStatus200(t *testing.T) {
	store := calls.NewMemoryRepo()
	r := newTestRouter(store)

	body := []byte(validBody("conv-http-2"))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/voice-agent", bytes.NewReader(body))
		req.Header.Set(SignatureHeader, signBody(t, body, testSecret, time.Now()))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i+1, w.Code)
		}
	}
	if len(store.Calls) != 1 {
		t.Fatalf("expected one stored record, got %d", len(store.Calls))
	}
}

func TestHandleWebhook_BadSignatureIs400(t *testing.T) {
	store := calls.NewMemoryRepo()
	r := newTestRouter(store)

	body := []byte(validBody("conv-http-3"))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice-agent", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "t=123,v0=deadbeef")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(store.Calls) != 0 {
		t.Fatalf("rejected delivery must not write records")
	}
}

func TestHandleLiveness(t *testing.T) {
	r := newTestRouter(calls.NewMemoryRepo())

	req := httptest.NewRequest(http.MethodGet, "/webhooks/voice-agent", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
